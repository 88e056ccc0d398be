package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/platinummonkey/workos-sso/pkg/contextkeys"
)

// LogLevel is the minimum severity a Logger emits
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const requestIDField = "request_id"

// Redacted replaces the value of any attribute named in redactedFields.
const Redacted = "[REDACTED]"

// Credentials and one-time values that must never reach the log output,
// whatever the call site passes.
var redactedFields = map[string]bool{
	"client_secret": true,
	"access_token":  true,
	"refresh_token": true,
	"id_token":      true,
	"code":          true,
	"state":         true,
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedFields[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// Logger writes JSON lines through slog. Values are immutable; the With
// methods return a derived logger.
type Logger struct {
	logger    *slog.Logger
	level     LogLevel
	requestID string
}

// NewLogger returns a JSON logger writing to output, or stdout when nil
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level:       level.slogLevel(),
		ReplaceAttr: redact,
	})

	return &Logger{logger: slog.New(handler), level: level}
}

// NopLogger returns a logger that discards everything
func NopLogger() *Logger {
	return NewLogger(ErrorLevel, io.Discard)
}

func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) derive(args ...interface{}) *Logger {
	return &Logger{
		logger:    l.logger.With(args...),
		level:     l.level,
		requestID: l.requestID,
	}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	derived := l.derive(key, value)
	if key == requestIDField {
		derived.requestID = fmt.Sprint(value)
	}
	return derived
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	derived := l.derive(args...)
	if v, ok := fields[requestIDField]; ok {
		derived.requestID = fmt.Sprint(v)
	}
	return derived
}

// WithError adds the error message under "error". A nil error is a no-op.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.derive("error", err.Error())
}

func (l *Logger) Debug(message string) { l.logger.Debug(message) }
func (l *Logger) Info(message string)  { l.logger.Info(message) }
func (l *Logger) Warn(message string)  { l.logger.Warn(message) }
func (l *Logger) Error(message string) { l.logger.Error(message) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.logger.Enabled(context.Background(), slog.LevelDebug) {
		l.logger.Debug(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// WithLogger stores logger in ctx for FromContext
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return contextkeys.WithLogger(ctx, logger)
}

// GetLogger returns the logger stored in ctx, then fallback, then a stdout
// logger at info level.
func GetLogger(ctx context.Context, fallback *Logger) *Logger {
	if logger, ok := ctx.Value(contextkeys.LoggerKey).(*Logger); ok {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return NewLogger(InfoLevel, os.Stdout)
}

// FromContext is GetLogger plus the request ID from ctx, unless the logger
// already carries one.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	logger := GetLogger(ctx, fallback)

	if logger.requestID == "" {
		if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
			logger = logger.WithField(requestIDField, requestID)
		}
	}

	return logger
}

// ParseLogLevel maps debug, info, warn/warning and error (any case) to a
// LogLevel. Anything else is InfoLevel.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}
