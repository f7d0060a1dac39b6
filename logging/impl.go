package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

// enabled reports whether a message at level is written. Debug messages on a context carrying a
// run key are always written.
func (imp *impl) enabled(ctx context.Context, level Level) bool {
	return level >= imp.level.Get() || (level == DEBUG && RunKey(ctx) != "")
}

// write sends one entry to every appender. It must be called directly by the exported logging
// methods so the caller lookup lands on their caller.
func (imp *impl) write(ctx context.Context, level Level, msg string, keysAndValues []interface{}) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     callerOfLogger(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	fields := fieldsOf(keysAndValues)
	if key := RunKey(ctx); key != "" {
		fields = append(fields, zap.String("run", key))
	}
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// fieldsOf pairs up alternating keys and values. A trailing key without a value is logged with an error.
func fieldsOf(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(context.Background(), DEBUG) {
		imp.write(context.Background(), DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(ctx, DEBUG) {
		imp.write(ctx, DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(context.Background(), INFO) {
		imp.write(context.Background(), INFO, msg, keysAndValues)
	}
}

func (imp *impl) CInfow(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(ctx, INFO) {
		imp.write(ctx, INFO, msg, keysAndValues)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(context.Background(), WARN) {
		imp.write(context.Background(), WARN, msg, keysAndValues)
	}
}

func (imp *impl) CWarnw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(ctx, WARN) {
		imp.write(ctx, WARN, msg, keysAndValues)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(context.Background(), ERROR) {
		imp.write(context.Background(), ERROR, msg, keysAndValues)
	}
}

func (imp *impl) CErrorw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(ctx, ERROR) {
		imp.write(ctx, ERROR, msg, keysAndValues)
	}
}

// callerOfLogger returns the code location that called the exported logging method.
func callerOfLogger() zapcore.EntryCaller {
	// callerOfLogger, write, the logging method, its caller
	const skip = 3
	var c zapcore.EntryCaller
	var ok bool
	c.PC, c.File, c.Line, ok = runtime.Caller(skip)
	if !ok {
		return c
	}
	c.Defined = true
	if fn := runtime.FuncForPC(c.PC); fn != nil {
		c.Function = fn.Name()
	}
	return c
}
