package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a 6dof pose, position and orientation, with respect to the origin.
// The position is in meters.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewZeroPose returns a pose at (0,0,0) with same orientation as whatever frame it is placed in.
func NewZeroPose() Pose {
	return &pose{orientation: quat.Number{Real: 1}}
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(p)
	}
	return &pose{point: p, orientation: normalize(o.Quaternion())}
}

// NewPoseFromPoint takes in a cartesian (x,y,z) and stores it as a vector.
// It will have the same orientation as the frame it is in.
func NewPoseFromPoint(p r3.Vector) Pose {
	return &pose{point: p, orientation: quat.Number{Real: 1}}
}

// NewPoseFromOrientation takes in an orientation and stores it as a pose at the origin.
func NewPoseFromOrientation(o Orientation) Pose {
	return NewPose(r3.Vector{}, o)
}

func (p *pose) Point() r3.Vector {
	return p.point
}

func (p *pose) Orientation() Orientation {
	q := quaternion(p.orientation)
	return &q
}

func (p *pose) String() string {
	ea := p.Orientation().EulerAngles()
	return fmt.Sprintf("{X:%.3f Y:%.3f Z:%.3f Roll:%.2f Pitch:%.2f Yaw:%.2f}",
		p.point.X, p.point.Y, p.point.Z, ea.Roll, ea.Pitch, ea.Yaw)
}

// Compose treats Poses as functions A(x) and B(x) and produces a new function C(x) = A(B(x)).
// It applies b in the frame of a.
func Compose(a, b Pose) Pose {
	qa := normalize(a.Orientation().Quaternion())
	qb := normalize(b.Orientation().Quaternion())
	return &pose{
		point:       a.Point().Add(rotate(qa, b.Point())),
		orientation: normalize(quat.Mul(qa, qb)),
	}
}

// PoseInverse returns the inverse of a pose.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(normalize(p.Orientation().Quaternion()))
	return &pose{
		point:       rotate(inv, p.Point()).Mul(-1),
		orientation: inv,
	}
}

// TransformPoint maps v from the frame described by p into p's parent frame.
func TransformPoint(p Pose, v r3.Vector) r3.Vector {
	return p.Point().Add(rotate(normalize(p.Orientation().Quaternion()), v))
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-6)
}

// PoseAlmostEqualEps will return a bool describing whether 2 poses are approximately the same within epsilon.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), epsilon) &&
		QuaternionAlmostEqual(a.Orientation().Quaternion(), b.Orientation().Quaternion(), epsilon)
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon && math.Abs(a.Z-b.Z) < epsilon
}

// PoseToMatrix returns the 4x4 homogeneous local-to-parent matrix of p.
func PoseToMatrix(p Pose) *mat.Dense {
	q := normalize(p.Orientation().Quaternion())
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	pt := p.Point()
	return mat.NewDense(4, 4, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y), pt.X,
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x), pt.Y,
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y), pt.Z,
		0, 0, 0, 1,
	})
}

// InversePoseMatrix returns the 4x4 homogeneous parent-to-local matrix of p.
func InversePoseMatrix(p Pose) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(PoseToMatrix(p)); err != nil {
		return nil, errors.Wrap(err, "pose matrix is not invertible")
	}
	return &inv, nil
}

// TransformPointMatrix applies the 4x4 homogeneous transform m to v.
func TransformPointMatrix(m mat.Matrix, v r3.Vector) r3.Vector {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(4, []float64{v.X, v.Y, v.Z, 1}))
	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// PoseConfig is the serialized form of a pose: a position in meters and euler angles in degrees.
type PoseConfig struct {
	Position    r3.Vector           `json:"position"`
	Orientation *EulerAnglesDegrees `json:"orientation,omitempty"`
}

// ParseConfig converts a PoseConfig into a Pose.
func (pc *PoseConfig) ParseConfig() (Pose, error) {
	if pc == nil {
		return NewZeroPose(), nil
	}
	for _, f := range []float64{pc.Position.X, pc.Position.Y, pc.Position.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.Errorf("pose position must be finite, got %v", pc.Position)
		}
	}
	if pc.Orientation == nil {
		return NewPoseFromPoint(pc.Position), nil
	}
	return NewPose(pc.Position, pc.Orientation.Radians()), nil
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}
