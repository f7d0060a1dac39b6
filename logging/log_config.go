package logging

import (
	"io"

	"github.com/pkg/errors"
)

// Config selects the level and outputs of a logger.
type Config struct {
	Level      string `json:"level,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

const (
	defaultMaxSizeMB  = 64
	defaultMaxBackups = 3
)

// Validate ensures the level parses and file rotation limits are sane.
func (cfg *Config) Validate(path string) error {
	if _, err := LevelFromString(cfg.Level); err != nil {
		return errors.Wrapf(err, "%s.level", path)
	}
	if cfg.MaxSizeMB < 0 || cfg.MaxBackups < 0 {
		return errors.Errorf("%s: max_size_mb and max_backups must not be negative", path)
	}
	return nil
}

// NewLoggerFromConfig builds a stdout logger with the configured level, adding a rotating file
// appender when a file is set.
func NewLoggerFromConfig(name string, cfg Config) (Logger, error) {
	return newLoggerFromConfig(name, cfg, NewStdoutAppender())
}

// NewWriterLoggerFromConfig is NewLoggerFromConfig with console output going to w instead of stdout.
func NewWriterLoggerFromConfig(name string, cfg Config, w io.Writer) (Logger, error) {
	return newLoggerFromConfig(name, cfg, NewWriterAppender(w))
}

func newLoggerFromConfig(name string, cfg Config, console Appender) (Logger, error) {
	level, err := LevelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger := NewBlankLogger(name)
	logger.SetLevel(level)
	logger.AddAppender(console)
	if cfg.File != "" {
		maxSize, maxBackups := cfg.MaxSizeMB, cfg.MaxBackups
		if maxSize == 0 {
			maxSize = defaultMaxSizeMB
		}
		if maxBackups == 0 {
			maxBackups = defaultMaxBackups
		}
		logger.AddAppender(NewFileAppender(cfg.File, maxSize, maxBackups))
	}
	return logger, nil
}
