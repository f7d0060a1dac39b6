// Package zones derives hazard zones from the surfaces of a room scan and answers which zone,
// if any, a world point is in.
//
// Anchors are authored with local +Z as the surface normal. A zone's face frame is the anchor
// frame moved to the surface and rotated +90 degrees about X, so face +Y is the surface normal
// and the footprint lies in the face XZ plane.
package zones

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/babyproofxr/hazard/spatialmath"
)

// Scene labels produced by the room scanner.
const (
	LabelFloor       = "FLOOR"
	LabelCeiling     = "CEILING"
	LabelWallFace    = "WALL_FACE"
	LabelTable       = "TABLE"
	LabelCouch       = "COUCH"
	LabelBed         = "BED"
	LabelStorage     = "STORAGE"
	LabelScreen      = "SCREEN"
	LabelLamp        = "LAMP"
	LabelPlant       = "PLANT"
	LabelWallArt     = "WALL_ART"
	LabelOther       = "OTHER"
	LabelDoorFrame   = "DOOR_FRAME"
	LabelWindowFrame = "WINDOW_FRAME"
)

// Surface is a scanned room surface. It is either a Plane or a Volume.
type Surface interface {
	SurfaceLabel() string
	AnchorPose() spatialmath.Pose
	validate() error
	isSurface()
}

// Plane is a flat scanned surface. Rect is in the anchor's local XY plane.
type Plane struct {
	Label  string
	Anchor spatialmath.Pose
	Rect   spatialmath.Rect
}

// Volume is a scanned box. Min and Max are in the anchor's local frame, with +Z up.
type Volume struct {
	Label  string
	Anchor spatialmath.Pose
	Min    r3.Vector
	Max    r3.Vector
}

// SurfaceLabel returns the scene label.
func (p Plane) SurfaceLabel() string { return p.Label }

// AnchorPose returns the anchor-to-world pose, the identity when unset.
func (p Plane) AnchorPose() spatialmath.Pose { return anchorOrZero(p.Anchor) }

func (p Plane) validate() error {
	if !p.Rect.Valid() {
		return errors.Errorf("plane %q has an invalid rect %v", p.Label, p.Rect)
	}
	return nil
}

func (Plane) isSurface() {}

// SurfaceLabel returns the scene label.
func (v Volume) SurfaceLabel() string { return v.Label }

// AnchorPose returns the anchor-to-world pose, the identity when unset.
func (v Volume) AnchorPose() spatialmath.Pose { return anchorOrZero(v.Anchor) }

func (v Volume) validate() error {
	if v.Min.X > v.Max.X || v.Min.Y > v.Max.Y || v.Min.Z > v.Max.Z {
		return errors.Errorf("volume %q has min %v above max %v", v.Label, v.Min, v.Max)
	}
	return nil
}

func (Volume) isSurface() {}

func anchorOrZero(p spatialmath.Pose) spatialmath.Pose {
	if p == nil {
		return spatialmath.NewZeroPose()
	}
	return p
}
