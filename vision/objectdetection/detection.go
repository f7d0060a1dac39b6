// Package objectdetection holds the raw detections read back from a detector and the
// geometry needed to place them on the display.
package objectdetection

import (
	"fmt"
	"image"
	"math"
)

// Detection is one row of a detector batch, in detector pixel units.
type Detection struct {
	Index   int     `json:"index"`
	ClassID int     `json:"class_id"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// BoundingBox returns the box rounded out to whole pixels.
func (d Detection) BoundingBox() *image.Rectangle {
	r := image.Rect(
		int(math.Floor(d.CenterX-d.Width/2)),
		int(math.Floor(d.CenterY-d.Height/2)),
		int(math.Ceil(d.CenterX+d.Width/2)),
		int(math.Ceil(d.CenterY+d.Height/2)),
	)
	return &r
}

// Area is the box area in detector pixels.
func (d Detection) Area() float64 {
	return d.Width * d.Height
}

func (d Detection) String() string {
	return fmt.Sprintf("#%d class=%d center=(%.1f, %.1f) size=(%.1f, %.1f)",
		d.Index, d.ClassID, d.CenterX, d.CenterY, d.Width, d.Height)
}
