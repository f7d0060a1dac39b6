package hazard

import (
	"context"

	"github.com/babyproofxr/hazard/logging"
	"github.com/babyproofxr/hazard/rimage/transform"
	"github.com/babyproofxr/hazard/vision/labels"
	"github.com/babyproofxr/hazard/vision/objectdetection"
)

// DefaultMaxRecords caps the records a single inference cycle reports.
const DefaultMaxRecords = 200

// Filter classifies each detection in order and returns the hazards. Apart from calls into
// proj it has no side effects.
func Filter(
	ctx context.Context,
	dets []objectdetection.Detection,
	ls labels.LabelSet,
	danger labels.DangerIndex,
	geom objectdetection.DisplayGeometry,
	res transform.Resolution,
	proj transform.RayProjector,
	maxSize float64,
) []Record {
	return NewClassifier(ls, danger, maxSize, nil).filter(ctx, dets, geom, res, proj)
}

func (c *Classifier) filter(
	ctx context.Context,
	dets []objectdetection.Detection,
	geom objectdetection.DisplayGeometry,
	res transform.Resolution,
	proj transform.RayProjector,
) []Record {
	if err := geom.Validate(); err != nil {
		c.logger.CWarnw(ctx, "skipping batch with invalid display geometry", "detections", len(dets), "error", err)
		return []Record{}
	}
	records := make([]Record, 0, len(dets))
	for _, det := range dets {
		if r, ok := c.classify(ctx, det, geom, res, proj); ok {
			records = append(records, r)
		}
	}
	return records
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// MaxSize is the choking hazard threshold in meters. Zero uses DefaultMaxSize.
	MaxSize float64
	// MaxRecords caps the records per cycle. Zero uses DefaultMaxRecords, negative disables the cap.
	MaxRecords int
	// Prefilters run over the raw detections before classification.
	Prefilters []objectdetection.Postprocessor
}

// Pipeline is the configured hazard filter run once per inference cycle.
type Pipeline struct {
	classifier *Classifier
	prefilter  objectdetection.Postprocessor
	maxRecords int
	logger     logging.Logger
}

// NewPipeline returns a Pipeline for the vocabulary and dangerous labels.
func NewPipeline(ls labels.LabelSet, danger labels.DangerIndex, cfg PipelineConfig, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewBlankLogger("hazard")
	}
	maxRecords := cfg.MaxRecords
	if maxRecords == 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Pipeline{
		classifier: NewClassifier(ls, danger, cfg.MaxSize, logger),
		prefilter:  objectdetection.Chain(cfg.Prefilters...),
		maxRecords: maxRecords,
		logger:     logger,
	}
}

// Classifier returns the pipeline's classifier.
func (p *Pipeline) Classifier() *Classifier {
	return p.classifier
}

// Run prefilters the detections, classifies them, and caps the result.
func (p *Pipeline) Run(
	ctx context.Context,
	dets []objectdetection.Detection,
	geom objectdetection.DisplayGeometry,
	res transform.Resolution,
	proj transform.RayProjector,
) []Record {
	if len(dets) == 0 {
		return []Record{}
	}
	kept := p.prefilter(dets)
	records := p.classifier.filter(ctx, kept, geom, res, proj)
	if p.maxRecords > 0 && len(records) > p.maxRecords {
		p.logger.CDebugw(ctx, "capping hazard records", "found", len(records), "max", p.maxRecords)
		records = records[:p.maxRecords]
	}
	return records
}
