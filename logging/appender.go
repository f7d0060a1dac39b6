package logging

import (
	"io"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the default time format string for log appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

func newEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(DefaultTimeFormatStr),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// ConsoleAppender writes human readable, tab separated log lines.
type ConsoleAppender struct {
	io.Writer
}

// NewStdoutAppender creates a new appender that outputs to stdout.
func NewStdoutAppender() ConsoleAppender {
	return ConsoleAppender{os.Stdout}
}

// NewWriterAppender creates a new appender that outputs to the input writer.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	return ConsoleAppender{writer}
}

// Write outputs the log entry to the underlying stream.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := zapcore.NewConsoleEncoder(newEncoderConfig()).EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = appender.Writer.Write(buf.Bytes())
	return err
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

// FileAppender writes json log lines to a size-rotated file.
type FileAppender struct {
	out *lumberjack.Logger
	enc zapcore.Encoder
}

// NewFileAppender returns an appender writing to filename, rotating after maxSizeMB megabytes and
// keeping at most maxBackups old files.
func NewFileAppender(filename string, maxSizeMB, maxBackups int) *FileAppender {
	return &FileAppender{
		out: &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		},
		enc: zapcore.NewJSONEncoder(newEncoderConfig()),
	}
}

// Write outputs the log entry as a json line.
func (fa *FileAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := fa.enc.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = fa.out.Write(buf.Bytes())
	return err
}

// Sync is a no-op; lumberjack writes through.
func (fa *FileAppender) Sync() error {
	return nil
}

// Close closes the current log file.
func (fa *FileAppender) Close() error {
	return fa.out.Close()
}
