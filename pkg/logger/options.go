package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogBuilder builds a log entry with a fluent interface.
type LogBuilder struct {
	Logger *Logger
	Ctx    context.Context
	Level  LogLevel
	Meta   map[string]string
	Fields []interface{}
}

// WithOutputDir sets the output directory of Log File.
func WithOutputDir(dir string) LoggerOption {
	return func(l *Logger) { l.OutputDir = dir }
}

// WithMaxFileSize sets the maximum size of single Log file in megabytes.
func WithMaxFileSize(size int) LoggerOption {
	return func(l *Logger) { l.MaxSizeMB = size }
}

// WithMaxDays sets the maximum age for the log files.
func WithMaxDays(days int) LoggerOption {
	return func(l *Logger) { l.MaxAgeDays = days }
}

// WithLevel sets the minimum level from a config string such as "info" or "warning".
func WithLevel(level string) LoggerOption {
	return func(l *Logger) { l.Level.SetLevel(ParseLevel(level)) }
}

// WithAppName names the log file and tags every entry.
func WithAppName(name string) LoggerOption {
	return func(l *Logger) { l.AppName = name }
}

// WithConsole toggles the stdout sink.
func WithConsole(enabled bool) LoggerOption {
	return func(l *Logger) { l.Console = enabled }
}

// WithFileOutput toggles the rotating file sink.
func WithFileOutput(enabled bool) LoggerOption {
	return func(l *Logger) { l.FileOutput = enabled }
}

// Debug starts a debug-level log entry.
func (l *Logger) Debug(ctx context.Context) *LogBuilder {
	return &LogBuilder{Logger: l, Ctx: ctx, Level: LevelDebug}
}

// Info starts an info-level log entry.
func (l *Logger) Info(ctx context.Context) *LogBuilder {
	return &LogBuilder{Logger: l, Ctx: ctx, Level: LevelInfo}
}

// Warn starts a warn-level log entry.
func (l *Logger) Warn(ctx context.Context) *LogBuilder {
	return &LogBuilder{Logger: l, Ctx: ctx, Level: LevelWarn}
}

// Error starts an error-level log entry.
func (l *Logger) Error(ctx context.Context) *LogBuilder {
	return &LogBuilder{Logger: l, Ctx: ctx, Level: LevelError}
}

// WithMeta adds string metadata to the log entry.
func (b *LogBuilder) WithMeta(meta map[string]string) *LogBuilder {
	b.Meta = meta
	return b
}

// WithFields adds alternating key/value pairs to the entry.
func (b *LogBuilder) WithFields(fields ...interface{}) *LogBuilder {
	b.Fields = append(b.Fields, fields...)
	return b
}

// Logs emits the entry.
func (b *LogBuilder) Logs(msg string) {
	if b.Logger == nil || b.Logger.Zap == nil {
		return
	}

	fields := make([]zap.Field, 0, len(b.Fields)/2+len(b.Meta)+2)
	if reqID := RequestID(b.Ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if userID := UserID(b.Ctx); userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	for i := 0; i < len(b.Fields); i += 2 {
		key := fmt.Sprint(b.Fields[i])
		if i+1 >= len(b.Fields) {
			fields = append(fields, zap.String("extra", key))
			break
		}
		if err, ok := b.Fields[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, b.Fields[i+1]))
	}
	if len(b.Meta) > 0 {
		fields = append(fields, zap.Any("meta", b.Meta))
	}

	b.Logger.Zap.Log(b.Level.zapLevel(), msg, fields...)
}

func (lv LogLevel) zapLevel() zapcore.Level {
	switch lv {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
