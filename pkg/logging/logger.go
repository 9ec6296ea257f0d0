// Package logging provides structured logging for the flight simulator.
// It wraps Go's slog package with run-scoped context, sensitive-value
// redaction and optional Graylog (GELF) shipping.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide application-specific logging functionality
// with run ID support and security-conscious formatting.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// Options configures a Logger
type Options struct {
	Level       string    // DEBUG, INFO, WARN or ERROR
	GelfAddress string    // host:port of a Graylog GELF UDP input, optional
	Output      io.Writer // defaults to os.Stdout
}

// NewLogger creates a new Logger instance with JSON output on stdout.
// The log level is read from GIMBAL_LOG_LEVEL and a Graylog input from
// GIMBAL_GELF_ADDR. A GELF address that cannot be dialed is ignored.
func NewLogger() *Logger {
	logger, err := New(Options{
		Level:       os.Getenv("GIMBAL_LOG_LEVEL"),
		GelfAddress: os.Getenv("GIMBAL_GELF_ADDR"),
	})
	if err != nil {
		logger, _ = New(Options{Level: os.Getenv("GIMBAL_LOG_LEVEL")})
	}
	return logger
}

// New creates a Logger from explicit options.
func New(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var closer io.Closer
	if opts.GelfAddress != "" {
		gw, err := gelf.NewWriter(opts.GelfAddress)
		if err != nil {
			return nil, WrapError(err, "failed to open GELF writer for %s", opts.GelfAddress)
		}
		out = io.MultiWriter(out, gw)
		closer = gw
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: sanitizeAttributes,
	})
	return &Logger{Logger: slog.New(handler), closer: closer}, nil
}

// Close releases the GELF connection, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// LogWithContext logs a message, adding the run ID carried by ctx.
func (l *Logger) LogWithContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	if runID := GetRunID(ctx); runID != "" {
		args = append(args, "run_id", runID)
	}
	l.Log(ctx, level, msg, args...)
}

// Info logs an informational message with context.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs a warning message with context.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelWarn, msg, args...)
}

// Error logs an error message with context and proper error formatting.
func (l *Logger) Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.LogWithContext(ctx, slog.LevelError, msg, args...)
}

// Debug logs a debug message with context.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelDebug, msg, args...)
}

type runIDKey struct{}

// WithRunID tags the context with a flight run ID. An empty ID is replaced by
// a freshly generated one.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		runID = NewRunID()
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

// GetRunID extracts the run ID from the context, or "" when absent.
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

// NewRunID generates a random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// ParseLevel maps a level name to a slog.Level, defaulting to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var sensitiveKeys = []string{"password", "passwd", "token", "secret", "dsn", "authorization"}

// sanitizeAttributes masks credentials such as the Influx token or a Postgres DSN.
func sanitizeAttributes(groups []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// WrapError wraps an error with additional context information.
func WrapError(err error, context string, args ...any) error {
	if err == nil {
		return nil
	}
	if len(args) > 0 {
		context = fmt.Sprintf(context, args...)
	}
	return fmt.Errorf("%s: %w", context, err)
}
