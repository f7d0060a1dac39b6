package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/babyproofxr/hazard/logging"
)

// Read reads a config from the given file, substituting environment variables first.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", filePath)
	}
	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	if logger == nil {
		logger = logging.NewBlankLogger("config")
	}
	var raw map[string]interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "cannot parse config as json")
	}

	cfg := &Config{ConfigFilePath: originalPath}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     cfg,
		Metadata:   &md,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "cannot decode config")
	}
	if len(md.Unused) > 0 {
		logger.CWarnw(ctx, "ignoring unknown config keys", "path", originalPath, "keys", md.Unused)
	}

	cfg.applyDefaults()
	if originalPath != "" {
		cfg.resolvePaths(filepath.Dir(originalPath))
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return cfg, nil
}
