package detection

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/babyproofxr/hazard/logging"
	"github.com/babyproofxr/hazard/rimage/transform"
	"github.com/babyproofxr/hazard/spatialmath"
	"github.com/babyproofxr/hazard/vision/hazard"
	"github.com/babyproofxr/hazard/vision/labels"
	"github.com/babyproofxr/hazard/vision/objectdetection"
	"github.com/babyproofxr/hazard/zones"
)

var (
	vocab  = labels.NewLabelSet("ball", "knife", "sofa")
	danger = labels.NewDangerIndex(vocab, []string{"knife"})
	geom   = objectdetection.DisplayGeometry{DisplayWidth: 1000, DisplayHeight: 1000, ImageWidth: 1000, ImageHeight: 1000}
	res    = transform.Resolution{Width: 1000, Height: 1000}
)

// manualReadback becomes ready only when the test says so.
type manualReadback[T any] struct {
	requests   int
	polls      int
	ready      bool
	v          T
	requestErr error
	pollErr    error
}

func (m *manualReadback[T]) Request(ctx context.Context) error {
	m.requests++
	return m.requestErr
}

func (m *manualReadback[T]) Poll(ctx context.Context) (T, bool, error) {
	m.polls++
	if m.pollErr != nil || !m.ready {
		var zero T
		return zero, false, m.pollErr
	}
	return m.v, true, nil
}

type countingProjector struct {
	calls int
}

// Project lays the display flat on the floor, one display pixel per millimeter.
func (p *countingProjector) Project(ctx context.Context, nx, ny float64, res transform.Resolution) spatialmath.WorldPoint {
	p.calls++
	return spatialmath.NewWorldPoint(r3.Vector{X: nx, Y: 0, Z: ny})
}

// two small balls and a large sofa
func testBoxes() objectdetection.BoxTensor {
	return objectdetection.BoxTensor{Rows: 3, Data: []float32{
		500, 500, 10, 10,
		200, 200, 500, 500,
		800, 300, 20, 20,
	}}
}

type harness struct {
	session *Session
	clock   *clock.Mock
	proj    *countingProjector
	counts  []int
}

func newHarness(t *testing.T, registry *zones.Registry) *harness {
	t.Helper()
	h := &harness{clock: clock.NewMock(), proj: &countingProjector{}}
	logger := logging.NewTestLogger(t)
	s, err := NewSession(Config{
		Pipeline:          hazard.NewPipeline(vocab, danger, hazard.PipelineConfig{}, logger),
		Zones:             registry,
		ReadbackTimeout:   time.Second,
		OnObjectsDetected: func(n int) { h.counts = append(h.counts, n) },
		Clock:             h.clock,
		Logger:            logger,
	})
	test.That(t, err, test.ShouldBeNil)
	h.session = s
	return h
}

func (h *harness) cycle(boxes Readback[objectdetection.BoxTensor], ids Readback[[]int32]) Cycle {
	return Cycle{Boxes: boxes, ClassIDs: ids, Geometry: geom, Resolution: res, Projector: h.proj}
}

func TestSessionHappyPath(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	test.That(t, h.session.Stage(), test.ShouldEqual, StageIdle)
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageIdle)
	test.That(t, h.session.Records(), test.ShouldHaveLength, 0)

	boxes := &manualReadback[objectdetection.BoxTensor]{v: testBoxes()}
	ids := &manualReadback[[]int32]{v: []int32{0, 2, 0}}
	id, err := h.session.Start(ctx, h.cycle(boxes, ids))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldNotEqual, uuid.Nil)
	test.That(t, h.session.CycleID(), test.ShouldEqual, id)

	_, err = h.session.Start(ctx, h.cycle(boxes, ids))
	test.That(t, errors.Is(err, ErrCycleInProgress), test.ShouldBeTrue)

	// first tick requests, later ticks poll
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageAwaitingBoxOutput)
	test.That(t, boxes.requests, test.ShouldEqual, 1)
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageAwaitingBoxOutput)
	test.That(t, boxes.requests, test.ShouldEqual, 1)
	test.That(t, boxes.polls, test.ShouldEqual, 1)

	boxes.ready = true
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageAwaitingLabelIDs)
	test.That(t, ids.requests, test.ShouldEqual, 0)
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageAwaitingLabelIDs)
	test.That(t, ids.requests, test.ShouldEqual, 1)

	ids.ready = true
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageReadyToFilter)
	test.That(t, h.proj.calls, test.ShouldEqual, 0)
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageDone)
	test.That(t, h.proj.calls, test.ShouldEqual, 15)

	records := h.session.Records()
	test.That(t, records, test.ShouldHaveLength, 2)
	test.That(t, records[0].DetectionIndex, test.ShouldEqual, 0)
	test.That(t, records[1].DetectionIndex, test.ShouldEqual, 2)
	test.That(t, records[0].Zone, test.ShouldBeNil)
	test.That(t, h.counts, test.ShouldResemble, []int{2})

	// done is terminal until the next start; the pipeline does not run again
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageDone)
	test.That(t, h.proj.calls, test.ShouldEqual, 15)
	test.That(t, h.counts, test.ShouldResemble, []int{2})
	test.That(t, h.session.Err(), test.ShouldBeNil)

	// a new cycle starts with an empty record list
	next, err := h.session.Start(ctx, h.cycle(NewReadyReadback(testBoxes()), NewReadyReadback([]int32{1, 1, 1})))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldNotEqual, id)
	test.That(t, h.session.Records(), test.ShouldHaveLength, 0)
	for i := 0; i < 5; i++ {
		h.session.Advance(ctx)
	}
	test.That(t, h.session.Stage(), test.ShouldEqual, StageDone)
	test.That(t, h.session.Records(), test.ShouldHaveLength, 3)
	test.That(t, h.counts, test.ShouldResemble, []int{2, 3})
}

func runToDone(ctx context.Context, t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i < 10 && s.Stage() != StageDone; i++ {
		s.Advance(ctx)
	}
	test.That(t, s.Stage(), test.ShouldEqual, StageDone)
}

func TestSessionErrors(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name     string
		boxes    func() Readback[objectdetection.BoxTensor]
		ids      func() Readback[[]int32]
		expected error
		msg      string
	}{
		{
			name:     "empty boxes",
			boxes:    func() Readback[objectdetection.BoxTensor] { return NewReadyReadback(objectdetection.BoxTensor{}) },
			ids:      func() Readback[[]int32] { return NewReadyReadback([]int32{}) },
			expected: ErrEmptyReadback,
		},
		{
			name:     "empty label ids",
			boxes:    func() Readback[objectdetection.BoxTensor] { return NewReadyReadback(testBoxes()) },
			ids:      func() Readback[[]int32] { return NewReadyReadback([]int32{}) },
			expected: ErrEmptyReadback,
		},
		{
			name:  "mismatched label ids",
			boxes: func() Readback[objectdetection.BoxTensor] { return NewReadyReadback(testBoxes()) },
			ids:   func() Readback[[]int32] { return NewReadyReadback([]int32{0, 1}) },
			msg:   "got 2 label ids for 3 boxes",
		},
		{
			name: "request fails",
			boxes: func() Readback[objectdetection.BoxTensor] {
				return &manualReadback[objectdetection.BoxTensor]{requestErr: errors.New("gpu lost")}
			},
			ids: func() Readback[[]int32] { return NewReadyReadback([]int32{}) },
			msg: "requesting box output: gpu lost",
		},
		{
			name:  "poll fails",
			boxes: func() Readback[objectdetection.BoxTensor] { return NewReadyReadback(testBoxes()) },
			ids: func() Readback[[]int32] {
				return &manualReadback[[]int32]{pollErr: errors.New("buffer gone")}
			},
			msg: "reading label ids: buffer gone",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			_, err := h.session.Start(ctx, h.cycle(tc.boxes(), tc.ids()))
			test.That(t, err, test.ShouldBeNil)

			sawError := false
			for i := 0; i < 10 && h.session.Stage() != StageDone; i++ {
				if h.session.Advance(ctx) == StageError {
					sawError = true
				}
			}
			test.That(t, sawError, test.ShouldBeTrue)
			test.That(t, h.session.Stage(), test.ShouldEqual, StageDone)
			test.That(t, h.session.Records(), test.ShouldHaveLength, 0)
			test.That(t, h.counts, test.ShouldResemble, []int{0})
			test.That(t, h.proj.calls, test.ShouldEqual, 0)
			if tc.expected != nil {
				test.That(t, errors.Is(h.session.Err(), tc.expected), test.ShouldBeTrue)
			}
			if tc.msg != "" {
				test.That(t, h.session.Err().Error(), test.ShouldContainSubstring, tc.msg)
			}
		})
	}
}

func TestSessionErrorDropsPreviousRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.session.Start(ctx, h.cycle(NewReadyReadback(testBoxes()), NewReadyReadback([]int32{0, 0, 0})))
	test.That(t, err, test.ShouldBeNil)
	runToDone(ctx, t, h.session)
	test.That(t, h.session.Records(), test.ShouldHaveLength, 2)

	_, err = h.session.Start(ctx, h.cycle(NewReadyReadback(objectdetection.BoxTensor{}), NewReadyReadback([]int32{})))
	test.That(t, err, test.ShouldBeNil)
	runToDone(ctx, t, h.session)
	test.That(t, h.session.Records(), test.ShouldHaveLength, 0)
	test.That(t, h.counts, test.ShouldResemble, []int{2, 0})
}

func TestSessionReadbackTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	boxes := &manualReadback[objectdetection.BoxTensor]{v: testBoxes()}
	_, err := h.session.Start(ctx, h.cycle(boxes, NewReadyReadback([]int32{0, 0, 0})))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageAwaitingBoxOutput)
	h.clock.Add(500 * time.Millisecond)
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageAwaitingBoxOutput)
	h.clock.Add(500 * time.Millisecond)
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageError)
	test.That(t, errors.Is(h.session.Err(), ErrReadbackTimeout), test.ShouldBeTrue)
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageDone)
	test.That(t, h.counts, test.ShouldResemble, []int{0})

	// a late result is never used
	boxes.ready = true
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageDone)
	test.That(t, h.session.Records(), test.ShouldHaveLength, 0)
}

func TestSessionCancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	boxes := &manualReadback[objectdetection.BoxTensor]{v: testBoxes(), ready: true}
	_, err := h.session.Start(ctx, h.cycle(boxes, &manualReadback[[]int32]{}))
	test.That(t, err, test.ShouldBeNil)
	h.session.Advance(ctx)
	h.session.Advance(ctx)
	test.That(t, h.session.Stage(), test.ShouldEqual, StageAwaitingLabelIDs)

	h.session.Cancel()
	test.That(t, h.session.Stage(), test.ShouldEqual, StageDone)
	test.That(t, h.session.Records(), test.ShouldHaveLength, 0)
	test.That(t, h.session.Advance(ctx), test.ShouldEqual, StageDone)
	test.That(t, h.counts, test.ShouldHaveLength, 0)

	_, err = h.session.Start(ctx, h.cycle(NewReadyReadback(testBoxes()), NewReadyReadback([]int32{0, 0, 0})))
	test.That(t, err, test.ShouldBeNil)
	runToDone(ctx, t, h.session)
	test.That(t, h.session.Records(), test.ShouldHaveLength, 2)
}

func TestSessionZoneAnnotation(t *testing.T) {
	ctx := context.Background()
	registry := zones.NewRegistry(logging.NewTestLogger(t))
	floor := zones.Plane{
		Label:  zones.LabelFloor,
		Anchor: spatialmath.NewPoseFromOrientation(spatialmath.NewRotationAboutX(-math.Pi / 2)),
		Rect:   spatialmath.NewRect(0.3, -0.6, 0.5, -0.4),
	}
	test.That(t, registry.Build(ctx, []zones.Surface{floor}, zones.OffsetConfig{}), test.ShouldBeNil)

	h := newHarness(t, registry)
	_, err := h.session.Start(ctx, h.cycle(NewReadyReadback(testBoxes()), NewReadyReadback([]int32{0, 0, 0})))
	test.That(t, err, test.ShouldBeNil)
	runToDone(ctx, t, h.session)

	records := h.session.Records()
	test.That(t, records, test.ShouldHaveLength, 2)
	// the first ball sits at (0.5, 0, 0.5), inside the floor zone
	test.That(t, records[0].Zone, test.ShouldResemble, &hazard.ZoneRef{ID: "Zone_FLOOR_0", Label: zones.LabelFloor})
	// the second ball sits at (0.8, 0, 0.3), outside it
	test.That(t, records[1].Zone, test.ShouldBeNil)
}

func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession(Config{})
	test.That(t, err, test.ShouldNotBeNil)
	p := hazard.NewPipeline(vocab, danger, hazard.PipelineConfig{}, nil)
	_, err = NewSession(Config{Pipeline: p, ReadbackTimeout: -time.Second})
	test.That(t, err, test.ShouldNotBeNil)

	s, err := NewSession(Config{Pipeline: p})
	test.That(t, err, test.ShouldBeNil)
	_, err = s.Start(context.Background(), Cycle{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, s.Stage(), test.ShouldEqual, StageIdle)
	test.That(t, StageReadyToFilter.String(), test.ShouldEqual, "ready_to_filter")
	test.That(t, Stage(42).String(), test.ShouldEqual, "Stage(42)")
}
