package spatialmath

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// WorldPoint is an optional world space position. The zero value is a miss.
// The origin is a valid hit, so absence is tracked separately from the coordinates.
type WorldPoint struct {
	point r3.Vector
	hit   bool
}

// NewWorldPoint returns a present WorldPoint at v.
func NewWorldPoint(v r3.Vector) WorldPoint {
	return WorldPoint{point: v, hit: true}
}

// NoHit returns an absent WorldPoint.
func NoHit() WorldPoint {
	return WorldPoint{}
}

// Point returns the position and whether it is present.
func (wp WorldPoint) Point() (r3.Vector, bool) {
	return wp.point, wp.hit
}

// Hit reports whether the point is present.
func (wp WorldPoint) Hit() bool {
	return wp.hit
}

// DistanceTo returns the euclidean distance to other, or +Inf when either point is absent.
func (wp WorldPoint) DistanceTo(other WorldPoint) float64 {
	if !wp.hit || !other.hit {
		return math.Inf(1)
	}
	return Distance(wp.point, other.point)
}

// Equal reports whether both points are absent, or both are present at the same position.
func (wp WorldPoint) Equal(other WorldPoint) bool {
	if wp.hit != other.hit {
		return false
	}
	return !wp.hit || wp.point == other.point
}

func (wp WorldPoint) String() string {
	if !wp.hit {
		return "<no hit>"
	}
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", wp.point.X, wp.point.Y, wp.point.Z)
}

// MarshalJSON encodes an absent point as null.
func (wp WorldPoint) MarshalJSON() ([]byte, error) {
	if !wp.hit {
		return []byte("null"), nil
	}
	return json.Marshal(wp.point)
}

// UnmarshalJSON decodes null as an absent point.
func (wp *WorldPoint) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*wp = NoHit()
		return nil
	}
	var v r3.Vector
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*wp = NewWorldPoint(v)
	return nil
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b r3.Vector) float64 {
	return a.Sub(b).Norm()
}

// SquaredDistance returns the squared euclidean distance between a and b.
func SquaredDistance(a, b r3.Vector) float64 {
	return a.Sub(b).Norm2()
}
