package observability

import (
	"context"
	"maps"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/requestctx"
)

// NewLogger builds the JSON logger used across the service. Keys follow Cloud Logging's
// structured payload so severity and message are picked up without a parser.
// LOG_LEVEL selects the level; unknown values mean info.
func NewLogger(service string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoding := zap.NewProductionEncoderConfig()
	encoding.MessageKey = "message"
	encoding.TimeKey = "timestamp"
	encoding.LevelKey = "severity"
	encoding.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encoding.EncodeLevel = zapcore.CapitalLevelEncoder

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig = encoding
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	if service = strings.TrimSpace(service); service != "" {
		cfg.InitialFields = map[string]any{"service": service}
	}
	return cfg.Build()
}

// WithLogger stores logger on ctx for EventLogger and the request middlewares.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// EventLogger adapts a zap logger to the event-style callback services accept. Fields are attached
// after the event name; the request-scoped logger on ctx wins over logger when present.
func EventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		target := logger
		if scoped := requestctx.Logger(ctx); scoped != requestctx.NoopLogger() {
			target = scoped.With(zap.String("component", logger.Name()))
		}
		attrs := []zap.Field{zap.String("event", event)}
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			if err, ok := fields[k].(error); ok {
				attrs = append(attrs, zap.NamedError(k, err))
			} else {
				attrs = append(attrs, zap.Any(k, fields[k]))
			}
		}
		target.Log(eventLevel(event), event, attrs...)
	}
}

// eventLevel maps the event suffix to a severity: "quote.publish.failed" logs as error.
func eventLevel(event string) zapcore.Level {
	switch event[strings.LastIndex(event, ".")+1:] {
	case "error", "failed":
		return zapcore.ErrorLevel
	case "warn", "skipped":
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
