// Package transform converts between screen fractions, camera pixels, and world points.
package transform

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/babyproofxr/hazard/spatialmath"
)

// Resolution is the native pixel size of an imaging source.
type Resolution struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
}

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// PixelFor turns a normalized display fraction, measured from the top left, into a pixel of a
// source with the given resolution. The returned pixel has its origin at the bottom left, so
// the vertical axis is inverted.
func PixelFor(nx, ny float64, res Resolution) image.Point {
	return image.Point{
		X: int(math.Round(nx * float64(res.Width))),
		Y: int(math.Round((1 - ny) * float64(res.Height))),
	}
}

// A RayProjector casts a ray through a normalized screen point and reports where it hits the scene.
// Implementations must be deterministic for a given scene snapshot, must return spatialmath.NoHit
// for out of frame input instead of failing, and must not keep state across calls.
type RayProjector interface {
	Project(ctx context.Context, nx, ny float64, res Resolution) spatialmath.WorldPoint
}

// ProjectorFunc adapts an ordinary function into a RayProjector.
type ProjectorFunc func(ctx context.Context, nx, ny float64, res Resolution) spatialmath.WorldPoint

// Project calls f.
func (f ProjectorFunc) Project(ctx context.Context, nx, ny float64, res Resolution) spatialmath.WorldPoint {
	return f(ctx, nx, ny, res)
}
