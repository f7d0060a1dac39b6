package detection

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/babyproofxr/hazard/logging"
	"github.com/babyproofxr/hazard/vision/hazard"
	"github.com/babyproofxr/hazard/vision/objectdetection"
	"github.com/babyproofxr/hazard/zones"
)

// Stage is a step of the inference cycle.
type Stage int

const (
	// StageIdle is before the first cycle.
	StageIdle Stage = iota
	// StageAwaitingBoxOutput waits for the box tensor readback.
	StageAwaitingBoxOutput
	// StageAwaitingLabelIDs waits for the class id readback.
	StageAwaitingLabelIDs
	// StageReadyToFilter has both outputs and runs the hazard pipeline on the next tick.
	StageReadyToFilter
	// StageError reports no hazards on the next tick.
	StageError
	// StageDone has released the cycle's buffers and waits for the next Start.
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAwaitingBoxOutput:
		return "awaiting_box_output"
	case StageAwaitingLabelIDs:
		return "awaiting_label_ids"
	case StageReadyToFilter:
		return "ready_to_filter"
	case StageError:
		return "error"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// DefaultReadbackTimeout is how long a readback may stay pending before the cycle fails.
const DefaultReadbackTimeout = 2 * time.Second

var (
	// ErrCycleInProgress is returned by Start while a cycle is running.
	ErrCycleInProgress = errors.New("an inference cycle is already in progress")
	// ErrEmptyReadback means the detector produced no rows.
	ErrEmptyReadback = errors.New("readback is empty")
	// ErrReadbackTimeout means a readback did not complete in time.
	ErrReadbackTimeout = errors.New("readback timed out")
)

// Config configures a Session.
type Config struct {
	Pipeline *hazard.Pipeline
	// Zones, when set, annotates each record with the zone its world position is in.
	Zones *zones.Registry
	// ReadbackTimeout of zero uses DefaultReadbackTimeout.
	ReadbackTimeout time.Duration
	// OnObjectsDetected is called at the end of every cycle with the number of records.
	OnObjectsDetected func(count int)
	Clock             clock.Clock
	Logger            logging.Logger
}

// Session drives inference cycles through their stages. Advance must be called once per tick;
// Records may be read from any goroutine.
type Session struct {
	pipeline *hazard.Pipeline
	zones    *zones.Registry
	timeout  time.Duration
	notify   func(int)
	clock    clock.Clock
	logger   logging.Logger

	mu          sync.Mutex
	stage       Stage
	cycleID     uuid.UUID
	cycle       Cycle
	requested   bool
	requestedAt time.Time
	boxes       objectdetection.BoxTensor
	classIDs    []int32
	lastErr     error

	records atomic.Pointer[[]hazard.Record]
}

// NewSession returns an idle Session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("session needs a hazard pipeline")
	}
	if cfg.ReadbackTimeout < 0 {
		return nil, errors.Errorf("readback timeout must not be negative, got %v", cfg.ReadbackTimeout)
	}
	s := &Session{
		pipeline: cfg.Pipeline,
		zones:    cfg.Zones,
		timeout:  cfg.ReadbackTimeout,
		notify:   cfg.OnObjectsDetected,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
	if s.timeout == 0 {
		s.timeout = DefaultReadbackTimeout
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = logging.NewBlankLogger("detection")
	}
	s.publish([]hazard.Record{})
	return s, nil
}

// Start begins a cycle. It fails with ErrCycleInProgress unless the session is idle or done.
// The previous cycle's records are cleared.
func (s *Session) Start(ctx context.Context, c Cycle) (uuid.UUID, error) {
	if c.Boxes == nil || c.ClassIDs == nil || c.Projector == nil {
		return uuid.Nil, errors.New("cycle needs box and class id readbacks and a projector")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageIdle && s.stage != StageDone {
		return uuid.Nil, errors.Wrapf(ErrCycleInProgress, "stage %v", s.stage)
	}
	s.reset()
	s.cycle = c
	s.cycleID = uuid.New()
	s.stage = StageAwaitingBoxOutput
	s.publish([]hazard.Record{})
	s.logger.CDebugw(ctx, "inference cycle started", "cycle", s.cycleID.String())
	return s.cycleID, nil
}

// Advance performs at most one step of the current cycle and returns the resulting stage.
func (s *Session) Advance(ctx context.Context) Stage {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stage {
	case StageIdle, StageDone:
	case StageAwaitingBoxOutput:
		boxes, ok := awaitReadback(ctx, s, s.cycle.Boxes, "box output")
		if !ok {
			break
		}
		if boxes.Rows <= 0 {
			s.fail(ctx, errors.Wrap(ErrEmptyReadback, "box output"))
			break
		}
		s.boxes = boxes
		s.stage = StageAwaitingLabelIDs
	case StageAwaitingLabelIDs:
		ids, ok := awaitReadback(ctx, s, s.cycle.ClassIDs, "label ids")
		if !ok {
			break
		}
		if len(ids) == 0 {
			s.fail(ctx, errors.Wrap(ErrEmptyReadback, "label ids"))
			break
		}
		if len(ids) != s.boxes.Rows {
			s.fail(ctx, errors.Errorf("got %d label ids for %d boxes", len(ids), s.boxes.Rows))
			break
		}
		s.classIDs = ids
		s.stage = StageReadyToFilter
	case StageReadyToFilter:
		s.filter(ctx)
		s.finish()
	case StageError:
		s.publish([]hazard.Record{})
		s.notifyCount(0)
		s.finish()
	}
	return s.stage
}

// awaitReadback requests the readback on the first call and polls it on later calls. It
// reports true once the value is ready. Failures move the session to StageError.
func awaitReadback[T any](ctx context.Context, s *Session, rb Readback[T], name string) (T, bool) {
	var zero T
	if !s.requested {
		if err := rb.Request(ctx); err != nil {
			s.fail(ctx, errors.Wrapf(err, "requesting %s", name))
			return zero, false
		}
		s.requested = true
		s.requestedAt = s.clock.Now()
		return zero, false
	}
	v, ready, err := rb.Poll(ctx)
	if err != nil {
		s.fail(ctx, errors.Wrapf(err, "reading %s", name))
		return zero, false
	}
	if !ready {
		if waited := s.clock.Since(s.requestedAt); waited >= s.timeout {
			s.fail(ctx, errors.Wrapf(ErrReadbackTimeout, "%s after %v", name, waited))
		}
		return zero, false
	}
	s.requested = false
	return v, true
}

func (s *Session) filter(ctx context.Context) {
	dets, err := objectdetection.NewBatch(s.boxes, s.classIDs)
	if err != nil {
		s.lastErr = err
		s.logger.CWarnw(ctx, "bad detector output", "cycle", s.cycleID.String(), "error", err)
		s.publish([]hazard.Record{})
		s.notifyCount(0)
		return
	}
	records := s.pipeline.Run(ctx, dets, s.cycle.Geometry, s.cycle.Resolution, s.cycle.Projector)
	if s.zones != nil {
		for i := range records {
			if z, ok := s.zones.FindZone(records[i].WorldPosition); ok {
				records[i].Zone = &hazard.ZoneRef{ID: z.ID, Label: z.Label}
			}
		}
	}
	s.publish(records)
	s.logger.CDebugw(ctx, "inference cycle filtered",
		"cycle", s.cycleID.String(), "detections", len(dets), "hazards", len(records))
	s.notifyCount(len(records))
}

func (s *Session) fail(ctx context.Context, err error) {
	s.lastErr = err
	s.stage = StageError
	s.logger.CWarnw(ctx, "inference cycle failed", "cycle", s.cycleID.String(), "error", err)
}

func (s *Session) finish() {
	s.stage = StageDone
	s.cycle = Cycle{}
	s.boxes = objectdetection.BoxTensor{}
	s.classIDs = nil
	s.requested = false
}

func (s *Session) reset() {
	s.finish()
	s.lastErr = nil
}

func (s *Session) notifyCount(n int) {
	if s.notify != nil {
		s.notify(n)
	}
}

func (s *Session) publish(records []hazard.Record) {
	s.records.Store(&records)
}

// Cancel abandons the current cycle, clearing its buffers and records.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.publish([]hazard.Record{})
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// CycleID returns the id of the current or last cycle.
func (s *Session) CycleID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycleID
}

// Err returns why the last cycle failed, if it did.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Records returns the hazards published by the last finished cycle.
func (s *Session) Records() []hazard.Record {
	return slices.Clone(*s.records.Load())
}
