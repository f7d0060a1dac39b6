// Package logging is the structured, leveled logging used across the hazard engine.
// Loggers are passed explicitly to the components that need them; there is no global logger.
package logging

import (
	"context"

	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface handed to every component.
// Every call takes a message and alternating keys and values.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	CInfow(ctx context.Context, msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	CWarnw(ctx context.Context, msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	CErrorw(ctx context.Context, msg string, keysAndValues ...interface{})

	Sublogger(subname string) Logger
	SetLevel(level Level)
	GetLevel() Level
	AddAppender(appender Appender)
	Sync() error
}

// Appender is an output for log entries.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// NewBlankLogger returns a new logger that outputs Debug+ logs in UTC, but without any
// pre-existing appenders/outputs.
func NewBlankLogger(name string) Logger {
	const inUTC = true
	return &impl{name, NewAtomicLevelAt(DEBUG), inUTC, []Appender{}}
}
