package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

type requestIDKey struct{}

// New creates a logger that writes human-readable output in development and
// JSON everywhere else. An unparsable level falls back to info.
func New(serviceName, environment, level string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(environment, "development") {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	l := NewWithWriter(serviceName, output)
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	l.Logger = l.Logger.Level(lvl)
	return l
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(serviceName string, w io.Writer) *Logger {
	return &Logger{
		Logger: zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger(),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{Logger: fn(l.Logger.With()).Logger()}
}

// WithRequestID returns a logger with the request ID attached
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("request_id", requestID) })
}

// WithCorrelationID returns a logger with the correlation ID attached
func (l *Logger) WithCorrelationID(correlationID string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("correlation_id", correlationID) })
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("component", component) })
}

// WithPharmacyID returns a logger scoped to one pharmacy
func (l *Logger) WithPharmacyID(pharmacyID int64) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Int64("pharmacy_id", pharmacyID) })
}

// ContextWithRequestID stores the ID of the request being served.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Ctx returns l with the request ID of ctx attached. Outside a request it
// returns l itself.
func (l *Logger) Ctx(ctx context.Context) *Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return l
	}
	return l.WithRequestID(id)
}
