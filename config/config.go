// Package config defines the hazard engine's configuration file.
package config

import (
	"math"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/babyproofxr/hazard/logging"
	"github.com/babyproofxr/hazard/services/detection"
	"github.com/babyproofxr/hazard/vision/hazard"
	"github.com/babyproofxr/hazard/vision/labels"
	"github.com/babyproofxr/hazard/vision/objectdetection"
	"github.com/babyproofxr/hazard/zones"
)

// Config is the engine configuration. Paths are relative to the config file.
type Config struct {
	ConfigFilePath string `json:"-"`

	LabelsPath          string `json:"labels_path"`
	DangerousLabelsPath string `json:"dangerous_labels_path,omitempty"`
	RoomScanPath        string `json:"room_scan_path,omitempty"`

	ChokingHazardMaxSize float64       `json:"choking_hazard_max_size_m,omitempty"`
	MaxRecords           int           `json:"max_records,omitempty"`
	MinBoxArea           float64       `json:"min_box_area_px,omitempty"`
	// ClassIDs limits classification to these detector classes when set.
	ClassIDs []int `json:"class_ids,omitempty"`
	// MaxDetections caps the detections classified per batch, in detector order. Zero is no cap.
	MaxDetections int `json:"max_detections,omitempty"`
	ReadbackTimeout      time.Duration `json:"readback_timeout,omitempty"`

	ZoneOffsets zones.OffsetConfig `json:"zone_offsets,omitempty"`
	Log         logging.Config     `json:"log,omitempty"`
}

// Default returns a config with every optional setting filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.ChokingHazardMaxSize == 0 {
		cfg.ChokingHazardMaxSize = hazard.DefaultMaxSize
	}
	if cfg.MaxRecords == 0 {
		cfg.MaxRecords = hazard.DefaultMaxRecords
	}
	if cfg.ReadbackTimeout == 0 {
		cfg.ReadbackTimeout = detection.DefaultReadbackTimeout
	}
}

// Validate returns every problem with the config, prefixing field names with path.
func (cfg *Config) Validate(path string) error {
	var errs error
	if cfg.LabelsPath == "" {
		errs = multierr.Append(errs, errors.Errorf("%s.labels_path: required", path))
	}
	if math.IsNaN(cfg.ChokingHazardMaxSize) || math.IsInf(cfg.ChokingHazardMaxSize, 0) || cfg.ChokingHazardMaxSize < 0 {
		errs = multierr.Append(errs, errors.Errorf(
			"%s.choking_hazard_max_size_m: must be a positive number of meters, got %v", path, cfg.ChokingHazardMaxSize))
	}
	if math.IsNaN(cfg.MinBoxArea) || cfg.MinBoxArea < 0 {
		errs = multierr.Append(errs, errors.Errorf("%s.min_box_area_px: must not be negative", path))
	}
	for i, id := range cfg.ClassIDs {
		if id < 0 {
			errs = multierr.Append(errs, errors.Errorf("%s.class_ids.%d: must not be negative, got %d", path, i, id))
		}
	}
	if cfg.MaxDetections < 0 {
		errs = multierr.Append(errs, errors.Errorf("%s.max_detections: must not be negative", path))
	}
	if cfg.ReadbackTimeout < 0 {
		errs = multierr.Append(errs, errors.Errorf("%s.readback_timeout: must not be negative", path))
	}
	errs = multierr.Append(errs, cfg.ZoneOffsets.Validate(path+".zone_offsets"))
	errs = multierr.Append(errs, cfg.Log.Validate(path+".log"))
	return errs
}

// resolvePaths makes relative asset paths relative to dir.
func (cfg *Config) resolvePaths(dir string) {
	for _, p := range []*string{&cfg.LabelsPath, &cfg.DangerousLabelsPath, &cfg.RoomScanPath, &cfg.Log.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Vocabulary loads the label set and, when configured, the dangerous labels.
func (cfg *Config) Vocabulary() (labels.LabelSet, labels.DangerIndex, error) {
	vocab, err := labels.LoadLabelSet(cfg.LabelsPath)
	if err != nil {
		return labels.LabelSet{}, labels.DangerIndex{}, err
	}
	if cfg.DangerousLabelsPath == "" {
		return vocab, labels.NewDangerIndex(vocab, nil), nil
	}
	danger, err := labels.LoadDangerIndex(vocab, cfg.DangerousLabelsPath)
	if err != nil {
		return labels.LabelSet{}, labels.DangerIndex{}, err
	}
	return vocab, danger, nil
}

// PipelineConfig converts the config into hazard pipeline settings.
func (cfg *Config) PipelineConfig() hazard.PipelineConfig {
	pc := hazard.PipelineConfig{
		MaxSize:    cfg.ChokingHazardMaxSize,
		MaxRecords: cfg.MaxRecords,
	}
	if len(cfg.ClassIDs) > 0 {
		pc.Prefilters = append(pc.Prefilters, objectdetection.NewClassFilter(cfg.ClassIDs...))
	}
	if cfg.MinBoxArea > 0 {
		pc.Prefilters = append(pc.Prefilters, objectdetection.NewAreaFilter(cfg.MinBoxArea))
	}
	if cfg.MaxDetections > 0 {
		pc.Prefilters = append(pc.Prefilters, objectdetection.NewMaxCountFilter(cfg.MaxDetections))
	}
	return pc
}

// NewPipeline loads the label assets and builds the hazard pipeline.
func (cfg *Config) NewPipeline(logger logging.Logger) (*hazard.Pipeline, error) {
	vocab, danger, err := cfg.Vocabulary()
	if err != nil {
		return nil, err
	}
	logger.Debugw("hazard pipeline ready",
		"labels", vocab.Len(),
		"dangerous_class_ids", danger.ClassIDs(),
		"class_ids", cfg.ClassIDs,
	)
	return hazard.NewPipeline(vocab, danger, cfg.PipelineConfig(), logger), nil
}

// RoomScan returns the configured room scan source. An unset path resolves to no scan.
func (cfg *Config) RoomScan() zones.RoomScanSource {
	return zones.RoomScanFile(cfg.RoomScanPath)
}

// Schema describes the config file.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
