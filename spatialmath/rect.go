package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Rect is a planar rectangle given by its min and max coordinates on two axes.
type Rect struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// NewRect returns a Rect spanning the two corners, in any order.
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		XMin: math.Min(x0, x1),
		XMax: math.Max(x0, x1),
		YMin: math.Min(y0, y1),
		YMax: math.Max(y0, y1),
	}
}

// Width is the extent along the first axis.
func (r Rect) Width() float64 {
	return r.XMax - r.XMin
}

// Height is the extent along the second axis.
func (r Rect) Height() float64 {
	return r.YMax - r.YMin
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() r2.Point {
	return r2.Point{X: (r.XMin + r.XMax) / 2, Y: (r.YMin + r.YMax) / 2}
}

// Valid reports whether the rect has finite, ordered coordinates.
func (r Rect) Valid() bool {
	for _, f := range []float64{r.XMin, r.XMax, r.YMin, r.YMax} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return r.XMin <= r.XMax && r.YMin <= r.YMax
}

func (r Rect) String() string {
	return fmt.Sprintf("(x:%.3f..%.3f, y:%.3f..%.3f)", r.XMin, r.XMax, r.YMin, r.YMax)
}
