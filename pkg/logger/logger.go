package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const (
	LevelCritical = slog.Level(12)

	defaultService = "gym-backend"
	redacted       = "[redacted]"
)

type Logger interface {
	Debug(message string, args ...any)
	Info(message string, args ...any)
	Warn(message string, args ...any)
	Error(message string, args ...any)
	Critical(message string, args ...any)
	// BusinessError logs an expected domain failure (conflict, bad input) at warn.
	BusinessError(message string, err error, args ...any)
	// InternalError logs a fault the caller cannot fix at error.
	InternalError(message string, err error, args ...any)
	With(args ...any) Logger
	// WithContext attaches trace_id and span_id when ctx carries a valid span.
	WithContext(ctx context.Context) Logger
}

var levels = map[string]slog.Level{
	"debug":    slog.LevelDebug,
	"info":     slog.LevelInfo,
	"warn":     slog.LevelWarn,
	"warning":  slog.LevelWarn,
	"error":    slog.LevelError,
	"critical": LevelCritical,
	"fatal":    LevelCritical,
}

// Attribute keys whose values never reach the output.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"token":         {},
	"secret":        {},
	"authorization": {},
	"dsn":           {},
}

type slogLogger struct {
	base *slog.Logger
}

// NewFromEnv reads LOG_LEVEL, LOG_FORMAT and ENV and tags every entry with
// OTEL_SERVICE_NAME so log lines join up with exported traces.
func NewFromEnv() Logger {
	env := normalizeValue(os.Getenv("ENV"))
	level := parseLevel(os.Getenv("LOG_LEVEL"), env)
	format := parseFormat(os.Getenv("LOG_FORMAT"), env)

	service := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME"))
	if service == "" {
		service = defaultService
	}
	return New(os.Stdout, level, format).With("service", service)
}

func New(output io.Writer, level slog.Level, format string) Logger {
	options := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	if normalizeValue(format) == "json" {
		handler = slog.NewJSONHandler(output, options)
	} else {
		handler = slog.NewTextHandler(output, options)
	}

	return &slogLogger{base: slog.New(handler)}
}

// Nop discards everything. Used by tests and CLI commands that print their own output.
func Nop() Logger {
	return New(io.Discard, LevelCritical+1, "text")
}

func (l *slogLogger) Debug(message string, args ...any) {
	l.base.Debug(message, args...)
}

func (l *slogLogger) Info(message string, args ...any) {
	l.base.Info(message, args...)
}

func (l *slogLogger) Warn(message string, args ...any) {
	l.base.Warn(message, args...)
}

func (l *slogLogger) Error(message string, args ...any) {
	l.base.Error(message, args...)
}

func (l *slogLogger) Critical(message string, args ...any) {
	l.base.Log(context.Background(), LevelCritical, message, args...)
}

func (l *slogLogger) BusinessError(message string, err error, args ...any) {
	l.logErr(slog.LevelWarn, message, err, args)
}

func (l *slogLogger) InternalError(message string, err error, args ...any) {
	l.logErr(slog.LevelError, message, err, args)
}

func (l *slogLogger) logErr(level slog.Level, message string, err error, args []any) {
	if err == nil {
		return
	}
	l.base.Log(context.Background(), level, message, append([]any{"err", err}, args...)...)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{base: l.base.With(args...)}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}

// parseLevel falls back to debug in development and info elsewhere.
func parseLevel(value string, env string) slog.Level {
	if level, ok := levels[normalizeValue(value)]; ok {
		return level
	}
	if env == "development" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// parseFormat defaults to text in development and json elsewhere.
func parseFormat(value string, env string) string {
	switch v := normalizeValue(value); v {
	case "json", "text":
		return v
	}
	if env == "development" {
		return "text"
	}
	return "json"
}

func normalizeValue(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func replaceAttr(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redacted)
	}
	if attr.Key != slog.LevelKey {
		return attr
	}

	if level, ok := attr.Value.Any().(slog.Level); ok && level == LevelCritical {
		attr.Value = slog.StringValue("CRITICAL")
	}
	return attr
}
