// Package logger wraps zap with the fluent builder used across OtakuShelf.
package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// LocalsKey is the fiber.Ctx locals key the request logger is stored under.
const LocalsKey = "logger"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	userIDKey    ctxKey = "user_id"
)

// Logger manages structured logging with file rotation.
type Logger struct {
	Zap        *zap.Logger
	Level      zap.AtomicLevel
	AppName    string
	OutputDir  string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Console    bool
	FileOutput bool
	File       *lumberjack.Logger
}

// LoggerOption defines a function to configure the logger.
type LoggerOption func(*Logger)

// NewLogger builds a JSON file logger (rotated by lumberjack) teed with a
// console encoder on stdout.
func NewLogger(ctx context.Context, opts ...LoggerOption) (*Logger, error) {
	l := &Logger{
		Level:      zap.NewAtomicLevelAt(zap.InfoLevel),
		AppName:    "otakushelf",
		OutputDir:  "./logs",
		MaxSizeMB:  10,
		MaxAgeDays: 7,
		MaxBackups: 5,
		Console:    true,
		FileOutput: true,
	}

	for _, opt := range opts {
		opt(l)
	}

	var cores []zapcore.Core

	if l.FileOutput {
		if err := os.MkdirAll(l.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		l.File = &lumberjack.Logger{
			Filename:   filepath.Join(l.OutputDir, l.AppName+".log"),
			MaxSize:    l.MaxSizeMB,
			MaxAge:     l.MaxAgeDays,
			MaxBackups: l.MaxBackups,
			Compress:   true,
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(l.File), l.Level))
	}

	if l.Console {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), l.Level))
	}

	l.Zap = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("app", l.AppName))

	l.Info(ctx).WithFields("level", l.Level.String(), "dir", l.OutputDir).Logs("Logger initialized")
	return l, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Zap: zap.NewNop(), Level: zap.NewAtomicLevelAt(zap.FatalLevel)}
}

// ParseLevel maps config strings onto zap levels. Unknown values fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		level = "warn"
	case "critical":
		level = "error"
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Printf lets the logger act as a gorm logger writer.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Zap.Sugar().Infof(format, args...)
}

// WithRequestID stores the request id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithUserID stores the authenticated subject on ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// RequestID returns the request id stored on ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// UserID returns the subject stored on ctx, if any.
func UserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// SetupRoutesContext adds the request ID to the request's user context.
func SetupRoutesContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()

	// requestid middleware runs first and leaves the id in locals.
	reqID, _ := c.Locals("requestid").(string)
	if reqID == "" {
		reqID = c.Get(fiber.HeaderXRequestID)
	}
	if reqID == "" {
		reqID = uuid.NewString()
		c.Set(fiber.HeaderXRequestID, reqID)
	}

	return WithRequestID(ctx, reqID)
}

// SetupLogger stores the logger in Fiber locals and seeds the request context.
func SetupLogger(l *Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(LocalsKey, l)
		c.SetUserContext(SetupRoutesContext(c))
		return c.Next()
	}
}

// Middleware writes one access log line per request. Errors returned by the
// chain are rendered by the app's error handler first so the logged status is
// the one the client sees.
func (l *Logger) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		b := l.Info(c.UserContext())
		switch {
		case status >= fiber.StatusInternalServerError:
			b = l.Error(c.UserContext())
		case status >= fiber.StatusBadRequest:
			b = l.Warn(c.UserContext())
		}
		b.WithFields(
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String(),
			"ip", c.IP(),
		).Logs("request completed")
		return nil
	}
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	_ = l.Zap.Sync()
	if l.File != nil {
		return l.File.Close()
	}
	return nil
}
