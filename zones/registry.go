package zones

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/babyproofxr/hazard/logging"
	"github.com/babyproofxr/hazard/spatialmath"
)

// Registry holds the zones of the current room. Rebuilding replaces the whole set at once, so
// readers see either the old zones or the new ones.
type Registry struct {
	zones  atomic.Pointer[[]*Zone]
	logger logging.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewBlankLogger("zones")
	}
	r := &Registry{logger: logger}
	r.Clear()
	return r
}

// Build replaces the zones with those derived from surfaces, in order. Surfaces that do not
// define a zone are skipped. Invalid surfaces are skipped and reported in the returned error;
// the remaining zones are still published.
func (r *Registry) Build(ctx context.Context, surfaces []Surface, offsets OffsetConfig) error {
	built := make([]*Zone, 0, len(surfaces))
	var errs error
	for i, s := range surfaces {
		if err := ctx.Err(); err != nil {
			return err
		}
		z, err := Build(s, offsets)
		if errors.Is(err, ErrNotZoneSurface) {
			r.logger.CDebugw(ctx, "surface has no zone", "index", i, "label", s.SurfaceLabel())
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "surface %d", i))
			continue
		}
		z.ID = fmt.Sprintf("Zone_%s_%d", z.Label, len(built))
		r.logger.CDebugw(ctx, "built zone",
			"id", z.ID,
			"kind", z.Kind.String(),
			"footprint", z.Footprint.String(),
			"external", z.External.String(),
			"internal", z.Internal.String(),
		)
		built = append(built, z)
	}
	r.zones.Store(&built)
	r.logger.CInfow(ctx, "zones rebuilt", "surfaces", len(surfaces), "zones", len(built))
	return errs
}

// BuildFromScan resolves the room scan and builds from it. When there is no scan the registry is
// left empty and no error is returned.
func (r *Registry) BuildFromScan(ctx context.Context, src RoomScanSource, offsets OffsetConfig) error {
	surfaces, err := src.RoomScan(ctx)
	if errors.Is(err, ErrUnresolvedRoomScan) {
		r.Clear()
		r.logger.CWarnw(ctx, "no room scan, hazard zones are disabled", "error", err)
		return nil
	}
	if err != nil {
		r.Clear()
		return errors.Wrap(err, "reading room scan")
	}
	return r.Build(ctx, surfaces, offsets)
}

// Clear removes every zone.
func (r *Registry) Clear() {
	empty := []*Zone{}
	r.zones.Store(&empty)
}

// Zones returns the current zones in build order.
func (r *Registry) Zones() []*Zone {
	return append([]*Zone(nil), r.snapshot()...)
}

// Len returns the number of zones.
func (r *Registry) Len() int {
	return len(r.snapshot())
}

func (r *Registry) snapshot() []*Zone {
	zs := r.zones.Load()
	if zs == nil {
		return nil
	}
	return *zs
}

// FindZone returns the first zone, in build order, that contains p.
func (r *Registry) FindZone(p spatialmath.WorldPoint) (*Zone, bool) {
	if !p.Hit() {
		return nil, false
	}
	for _, z := range r.snapshot() {
		if z.Contains(p) {
			return z, true
		}
	}
	return nil, false
}

// ZoneLabel returns the label of the zone containing p.
func (r *Registry) ZoneLabel(p spatialmath.WorldPoint) (string, bool) {
	z, ok := r.FindZone(p)
	if !ok {
		return "", false
	}
	return z.Label, true
}

// ZoneID returns the id of the zone containing p.
func (r *Registry) ZoneID(p spatialmath.WorldPoint) (string, bool) {
	z, ok := r.FindZone(p)
	if !ok {
		return "", false
	}
	return z.ID, true
}
