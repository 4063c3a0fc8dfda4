package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// New returns the process-wide structured logger. Output is one JSON
// object per line so log shippers can ingest it without a parse step.
// Local and dev environments log at debug; everything else at info.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	switch appEnv {
	case "local", "dev":
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", "receptionist-api")
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the request-scoped logger from ctx, or slog.Default()
// when the call site runs outside a request (startup, shutdown, tests).
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// ShutdownFlush exists so main can flush buffered logs on shutdown if a
// buffered handler is ever swapped in. The JSON handler writes through.
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }
