package objectdetection

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestToScreen(t *testing.T) {
	geom := DisplayGeometry{DisplayWidth: 1280, DisplayHeight: 720, ImageWidth: 640, ImageHeight: 640}
	test.That(t, geom.Validate(), test.ShouldBeNil)
	test.That(t, geom.ScaleX(), test.ShouldEqual, 2.)
	test.That(t, geom.ScaleY(), test.ShouldEqual, 1.125)

	box := geom.ToScreen(Detection{CenterX: 320, CenterY: 320, Width: 10, Height: 16})
	test.That(t, box.Center, test.ShouldResemble, r2.Point{X: 0, Y: 0})
	test.That(t, box.Size, test.ShouldResemble, r2.Point{X: 20, Y: 18})
	test.That(t, geom.Normalize(box.Center), test.ShouldResemble, r2.Point{X: 0.5, Y: 0.5})

	box = geom.ToScreen(Detection{CenterX: 0, CenterY: 640})
	test.That(t, box.Center, test.ShouldResemble, r2.Point{X: -640, Y: 360})
	test.That(t, geom.Normalize(box.Center), test.ShouldResemble, r2.Point{X: 0, Y: 1})

	test.That(t, DisplayGeometry{DisplayWidth: 1, DisplayHeight: 1}.Validate(), test.ShouldNotBeNil)
	test.That(t, DisplayGeometry{ImageWidth: 1, ImageHeight: 1}.Validate(), test.ShouldNotBeNil)
}
