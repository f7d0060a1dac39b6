// Package detection runs hazard classification over detector outputs that arrive through
// asynchronous readbacks, one step per scheduler tick.
package detection

import (
	"context"

	"github.com/babyproofxr/hazard/rimage/transform"
	"github.com/babyproofxr/hazard/vision/objectdetection"
)

// Readback is an asynchronous copy of one model output. Request starts the copy; Poll reports
// the value once it is ready.
type Readback[T any] interface {
	Request(ctx context.Context) error
	Poll(ctx context.Context) (T, bool, error)
}

// Cycle is everything one inference cycle needs: the two model outputs and the frame they
// were computed on.
type Cycle struct {
	Boxes      Readback[objectdetection.BoxTensor]
	ClassIDs   Readback[[]int32]
	Geometry   objectdetection.DisplayGeometry
	Resolution transform.Resolution
	Projector  transform.RayProjector
}

type readyReadback[T any] struct {
	v         T
	requested bool
}

// NewReadyReadback returns a Readback that is ready as soon as it is requested.
func NewReadyReadback[T any](v T) Readback[T] {
	return &readyReadback[T]{v: v}
}

func (r *readyReadback[T]) Request(ctx context.Context) error {
	r.requested = true
	return nil
}

func (r *readyReadback[T]) Poll(ctx context.Context) (T, bool, error) {
	if !r.requested {
		var zero T
		return zero, false, nil
	}
	return r.v, true, nil
}
