package hazard

import (
	"context"

	"github.com/golang/geo/r2"

	"github.com/babyproofxr/hazard/logging"
	"github.com/babyproofxr/hazard/rimage/transform"
	"github.com/babyproofxr/hazard/spatialmath"
	"github.com/babyproofxr/hazard/vision/labels"
	"github.com/babyproofxr/hazard/vision/objectdetection"
)

// DefaultMaxSize is the largest world extent, in meters, of a choking hazard.
const DefaultMaxSize = 0.032

// Classifier decides whether a single detection is a hazard.
type Classifier struct {
	labels  labels.LabelSet
	danger  labels.DangerIndex
	maxSize float64
	logger  logging.Logger
}

// NewClassifier returns a Classifier. A maxSize that is not positive uses DefaultMaxSize.
func NewClassifier(ls labels.LabelSet, danger labels.DangerIndex, maxSize float64, logger logging.Logger) *Classifier {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = logging.NewBlankLogger("hazard")
	}
	return &Classifier{labels: ls, danger: danger, maxSize: maxSize, logger: logger}
}

// MaxSize returns the choking hazard threshold in meters.
func (c *Classifier) MaxSize() float64 {
	return c.maxSize
}

// Classify projects the detection into the world and reports a record when it is a choking hazard
// or has a dangerous label. It returns false when the center of the box does not hit the scene,
// or when the detection is neither.
func (c *Classifier) Classify(
	ctx context.Context,
	det objectdetection.Detection,
	geom objectdetection.DisplayGeometry,
	res transform.Resolution,
	proj transform.RayProjector,
) (Record, bool) {
	if err := geom.Validate(); err != nil {
		c.logger.CDebugw(ctx, "skipping detection", "index", det.Index, "error", err)
		return Record{}, false
	}
	return c.classify(ctx, det, geom, res, proj)
}

// classify is Classify for a geometry that has already been validated.
func (c *Classifier) classify(
	ctx context.Context,
	det objectdetection.Detection,
	geom objectdetection.DisplayGeometry,
	res transform.Resolution,
	proj transform.RayProjector,
) (Record, bool) {
	box := geom.ToScreen(det)

	project := func(p r2.Point) spatialmath.WorldPoint {
		n := geom.Normalize(p)
		return proj.Project(ctx, n.X, n.Y, res)
	}

	center := project(box.Center)
	if !center.Hit() {
		c.logger.CDebugw(ctx, "detection center has no world position", "index", det.Index, "class_id", det.ClassID)
		return Record{}, false
	}

	offsets := [4]r2.Point{
		Left:   {X: -box.Size.X / 2},
		Right:  {X: box.Size.X / 2},
		Top:    {Y: -box.Size.Y / 2},
		Bottom: {Y: box.Size.Y / 2},
	}
	var dists [4]float64
	for i, off := range offsets {
		dists[i] = center.DistanceTo(project(box.Center.Add(off)))
	}

	choking := dists[Left]+dists[Right] < c.maxSize && dists[Top]+dists[Bottom] < c.maxSize
	dangerous := c.danger.Contains(det.ClassID)

	c.logger.CDebugw(ctx, "classified detection",
		"index", det.Index,
		"class_id", det.ClassID,
		"dangerous", dangerous,
		"choking_hazard", choking,
		"perimeter_m", dists[:],
	)
	if !dangerous && !choking {
		return Record{}, false
	}

	return Record{
		DetectionIndex:     det.Index,
		ClassID:            det.ClassID,
		Label:              NormalizeLabel(c.labels.Name(det.ClassID)),
		ScreenCenter:       box.Center,
		ScreenSize:         box.Size,
		WorldPosition:      center,
		IsDangerousLabel:   dangerous,
		IsChokingHazard:    choking,
		PerimeterDistances: dists,
	}, true
}
