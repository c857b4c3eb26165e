// Package logging provides the structured, request-scoped logger shared by
// the HTTP layer and the services.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options controls logger initialisation.
type Options struct {
	Level  string // trace|debug|info|warning|error
	Format string // text|json
	Output io.Writer
}

type requestIDKey struct{}

var base = logrus.New()

// Init configures the process-wide logger.
func Init(opts Options) {
	l := logrus.New()

	switch opts.Level {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warning", "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if opts.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	base = l
}

// L returns the process-wide logger.
func L() *logrus.Logger {
	return base
}

// WithRequestID stores the request id so FromContext can attach it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID extracts the request id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// FromContext returns an entry carrying the request id, or "unknown" for
// background work.
func FromContext(ctx context.Context) *logrus.Entry {
	rid := RequestID(ctx)
	if rid == "" {
		rid = "unknown"
	}
	return base.WithField("request_id", rid)
}

// Op is shorthand for FromContext(ctx).WithField("operation", operation).
func Op(ctx context.Context, operation string) *logrus.Entry {
	return FromContext(ctx).WithField("operation", operation)
}
