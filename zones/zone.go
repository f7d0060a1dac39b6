package zones

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/babyproofxr/hazard/spatialmath"
)

// ErrNotZoneSurface is returned by Build for surfaces that never get a zone, such as walls.
var ErrNotZoneSurface = errors.New("surface does not define a hazard zone")

// Kind is the kind of zone.
type Kind int

const (
	// KindFloor is a solid zone over the floor.
	KindFloor Kind = iota
	// KindVolumeTop is a shell around the top face of a volume.
	KindVolumeTop
)

func (k Kind) String() string {
	switch k {
	case KindFloor:
		return "floor"
	case KindVolumeTop:
		return "volume_top"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText writes the kind name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Zone is a hazard region in a surface's face frame.
type Zone struct {
	Label string
	ID    string
	Kind  Kind
	// Pose is the face-to-world transform.
	Pose spatialmath.Pose
	// Footprint is the surface rectangle in face XZ, X on the first axis and Z on the second.
	Footprint spatialmath.Rect
	External  spatialmath.Bounds
	Internal  spatialmath.Bounds

	worldToFace *mat.Dense
}

var faceRotation = spatialmath.NewRotationAboutX(math.Pi / 2)

// Build derives the zone for a surface. The returned zone has no ID; the registry assigns one.
func Build(s Surface, offsets OffsetConfig) (*Zone, error) {
	if s == nil {
		return nil, errors.New("no surface")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	var (
		kind      Kind
		top       r3.Vector
		footprint spatialmath.Rect
	)
	switch surf := s.(type) {
	case Plane:
		if surf.Label != LabelFloor {
			return nil, errors.Wrapf(ErrNotZoneSurface, "plane %q", surf.Label)
		}
		kind = KindFloor
		footprint = spatialmath.NewRect(surf.Rect.XMin, -surf.Rect.YMax, surf.Rect.XMax, -surf.Rect.YMin)
	case Volume:
		kind = KindVolumeTop
		top = r3.Vector{Z: surf.Max.Z}
		footprint = spatialmath.NewRect(surf.Min.X, -surf.Max.Y, surf.Max.X, -surf.Min.Y)
	default:
		return nil, errors.Errorf("unknown surface type %T", s)
	}

	pose := spatialmath.Compose(
		s.AnchorPose(),
		spatialmath.NewPose(top, faceRotation),
	)

	pair := offsets.Resolve(s.SurfaceLabel())
	c := footprint.Center()
	center := r3.Vector{X: c.X, Y: 0, Z: c.Y}
	hw, hd := footprint.Width()/2, footprint.Height()/2
	external, internal := pair.halfSizes(hw, hd)
	worldToFace, err := spatialmath.InversePoseMatrix(pose)
	if err != nil {
		return nil, errors.Wrapf(err, "surface %q", s.SurfaceLabel())
	}

	return &Zone{
		Label:       s.SurfaceLabel(),
		Kind:        kind,
		Pose:        pose,
		Footprint:   footprint,
		External:    spatialmath.NewBounds(center, external),
		Internal:    spatialmath.NewBounds(center, internal),
		worldToFace: worldToFace,
	}, nil
}

// HasInterior reports whether the zone is a shell, meaning points inside the internal bounds are excluded.
func (z *Zone) HasInterior() bool {
	return z.Kind != KindFloor && !z.Internal.IsDegenerate()
}

// ToLocal maps a world position into the zone's face frame.
func (z *Zone) ToLocal(v r3.Vector) r3.Vector {
	if z.worldToFace == nil {
		return spatialmath.TransformPoint(spatialmath.PoseInverse(z.Pose), v)
	}
	return spatialmath.TransformPointMatrix(z.worldToFace, v)
}

// Contains reports whether p is in the zone. Points on the external boundary are in the zone,
// and so are points on the internal boundary. An absent point is never in a zone.
func (z *Zone) Contains(p spatialmath.WorldPoint) bool {
	v, ok := p.Point()
	if !ok {
		return false
	}
	local := z.ToLocal(v)
	if !z.External.Contains(local) {
		return false
	}
	if !z.HasInterior() {
		return true
	}
	return !z.Internal.ContainsStrict(local)
}

func (z *Zone) String() string {
	return fmt.Sprintf("%s (%s, %s) footprint %v", z.ID, z.Label, z.Kind, z.Footprint)
}
