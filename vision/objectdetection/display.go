package objectdetection

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// DisplayGeometry relates the detector's input image to the display the detections are shown on.
type DisplayGeometry struct {
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
	ImageWidth    float64 `json:"image_width"`
	ImageHeight   float64 `json:"image_height"`
}

// ScreenBox is a detection in display pixels, centered on the display origin.
type ScreenBox struct {
	Center r2.Point `json:"center"`
	Size   r2.Point `json:"size"`
}

// Validate returns an error if any dimension is not positive.
func (g DisplayGeometry) Validate() error {
	if g.DisplayWidth <= 0 || g.DisplayHeight <= 0 {
		return errors.Errorf("invalid display size (%v, %v)", g.DisplayWidth, g.DisplayHeight)
	}
	if g.ImageWidth <= 0 || g.ImageHeight <= 0 {
		return errors.Errorf("invalid image size (%v, %v)", g.ImageWidth, g.ImageHeight)
	}
	return nil
}

// ScaleX is display pixels per image pixel horizontally.
func (g DisplayGeometry) ScaleX() float64 {
	return g.DisplayWidth / g.ImageWidth
}

// ScaleY is display pixels per image pixel vertically.
func (g DisplayGeometry) ScaleY() float64 {
	return g.DisplayHeight / g.ImageHeight
}

// ToScreen rescales a detection into display pixels with (0, 0) at the middle of the display.
func (g DisplayGeometry) ToScreen(d Detection) ScreenBox {
	sx, sy := g.ScaleX(), g.ScaleY()
	return ScreenBox{
		Center: r2.Point{
			X: d.CenterX*sx - g.DisplayWidth/2,
			Y: d.CenterY*sy - g.DisplayHeight/2,
		},
		Size: r2.Point{X: d.Width * sx, Y: d.Height * sy},
	}
}

// Normalize turns a display-centered point into a fraction of the display, measured from the top left.
func (g DisplayGeometry) Normalize(p r2.Point) r2.Point {
	return r2.Point{
		X: (p.X + g.DisplayWidth/2) / g.DisplayWidth,
		Y: (p.Y + g.DisplayHeight/2) / g.DisplayHeight,
	}
}
