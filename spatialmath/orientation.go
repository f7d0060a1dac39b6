package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of the orientation
// of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	Quaternion() quat.Number
	EulerAngles() *EulerAngles
}

// EulerAngles are three angles (in radians) used to represent the rotation of an object in 3D Euclidean space.
// The rotation is applied yaw (Z) first, then pitch (Y), then roll (X) in the rotating frame.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// NewEulerAngles creates an empty EulerAngles struct.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{}
}

// Quaternion returns the unit quaternion for these euler angles.
func (ea *EulerAngles) Quaternion() quat.Number {
	cr, sr := math.Cos(ea.Roll/2), math.Sin(ea.Roll/2)
	cp, sp := math.Cos(ea.Pitch/2), math.Sin(ea.Pitch/2)
	cy, sy := math.Cos(ea.Yaw/2), math.Sin(ea.Yaw/2)
	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// EulerAngles returns the receiver.
func (ea *EulerAngles) EulerAngles() *EulerAngles {
	return ea
}

// EulerAnglesDegrees is EulerAngles expressed in degrees, the form used in scan and camera files.
type EulerAnglesDegrees struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Radians converts to radian EulerAngles.
func (ead *EulerAnglesDegrees) Radians() *EulerAngles {
	return &EulerAngles{
		Roll:  degToRad(ead.Roll),
		Pitch: degToRad(ead.Pitch),
		Yaw:   degToRad(ead.Yaw),
	}
}

// quaternion is an orientation backed by a unit quaternion.
type quaternion quat.Number

// NewZeroOrientation returns an orientatation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &quaternion{1, 0, 0, 0}
}

// NewOrientationFromQuaternion normalizes q and wraps it as an Orientation.
func NewOrientationFromQuaternion(q quat.Number) Orientation {
	n := normalize(q)
	return (*quaternion)(&n)
}

// NewRotationAboutX returns the orientation of a right-handed rotation of theta radians about +X.
func NewRotationAboutX(theta float64) Orientation {
	return &quaternion{math.Cos(theta / 2), math.Sin(theta / 2), 0, 0}
}

func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

func (q *quaternion) EulerAngles() *EulerAngles {
	n := quat.Number(*q)
	w, x, y, z := n.Real, n.Imag, n.Jmag, n.Kmag

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return &EulerAngles{Roll: roll, Pitch: pitch, Yaw: yaw}
}

// OrientationAlmostEqual will return a bool describing whether 2 poses have approximately the same orientation.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

// QuaternionAlmostEqual is an equality test for all the float components of a quaternion. Quaternions have double coverage,
// so q and -q describe the same rotation and compare equal.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	near := func(a, b quat.Number) bool {
		return math.Abs(a.Real-b.Real) <= tol &&
			math.Abs(a.Imag-b.Imag) <= tol &&
			math.Abs(a.Jmag-b.Jmag) <= tol &&
			math.Abs(a.Kmag-b.Kmag) <= tol
	}
	return near(a, b) || near(a, quat.Scale(-1, b))
}

func normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}
