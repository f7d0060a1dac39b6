package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Bounds is an axis aligned box in some local frame, described by its center and half size.
type Bounds struct {
	Center   r3.Vector `json:"center"`
	HalfSize r3.Vector `json:"half_size"`
}

// NewBounds returns bounds centered at center with the given half extents. Negative extents are clamped to zero.
func NewBounds(center, halfSize r3.Vector) Bounds {
	return Bounds{
		Center: center,
		HalfSize: r3.Vector{
			X: clampNonNegative(halfSize.X),
			Y: clampNonNegative(halfSize.Y),
			Z: clampNonNegative(halfSize.Z),
		},
	}
}

// Size returns the full extents of the bounds.
func (b Bounds) Size() r3.Vector {
	return b.HalfSize.Mul(2)
}

// Min returns the minimum corner.
func (b Bounds) Min() r3.Vector {
	return b.Center.Sub(b.HalfSize)
}

// Max returns the maximum corner.
func (b Bounds) Max() r3.Vector {
	return b.Center.Add(b.HalfSize)
}

// IsDegenerate reports whether any axis has zero extent.
func (b Bounds) IsDegenerate() bool {
	return b.HalfSize.X <= floatEpsilon || b.HalfSize.Y <= floatEpsilon || b.HalfSize.Z <= floatEpsilon
}

// Contains reports whether p lies inside the bounds or on their surface.
func (b Bounds) Contains(p r3.Vector) bool {
	d := p.Sub(b.Center)
	return math.Abs(d.X) <= b.HalfSize.X+floatEpsilon &&
		math.Abs(d.Y) <= b.HalfSize.Y+floatEpsilon &&
		math.Abs(d.Z) <= b.HalfSize.Z+floatEpsilon
}

// ContainsStrict reports whether p lies strictly inside the bounds. Points on the surface are outside.
func (b Bounds) ContainsStrict(p r3.Vector) bool {
	d := p.Sub(b.Center)
	return math.Abs(d.X) < b.HalfSize.X-floatEpsilon &&
		math.Abs(d.Y) < b.HalfSize.Y-floatEpsilon &&
		math.Abs(d.Z) < b.HalfSize.Z-floatEpsilon
}

// Encloses reports whether every extent of b is at least the matching extent of other.
func (b Bounds) Encloses(other Bounds) bool {
	return b.HalfSize.X+floatEpsilon >= other.HalfSize.X &&
		b.HalfSize.Y+floatEpsilon >= other.HalfSize.Y &&
		b.HalfSize.Z+floatEpsilon >= other.HalfSize.Z
}

func (b Bounds) String() string {
	s := b.Size()
	return fmt.Sprintf("Center: X:%.3f, Y:%.3f, Z:%.3f | Size: X:%.3f, Y:%.3f, Z:%.3f",
		b.Center.X, b.Center.Y, b.Center.Z, s.X, s.Y, s.Z)
}
