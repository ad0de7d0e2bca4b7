// Package logger configures zerolog for the engine binaries.
package logger

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Setup configures the global zerolog logger. level overrides the default
// (debug for local development, info otherwise) when it parses.
func Setup(isLocalDev bool, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl := zerolog.InfoLevel
	if isLocalDev {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		lvl = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)
}

// EnrichContextWithLogger attaches a logger carrying trace_id and span_id of
// the active span. Contexts without a recording span get the global logger.
func EnrichContextWithLogger(ctx context.Context) context.Context {
	l := log.Logger
	span := trace.SpanFromContext(ctx)
	if sc := span.SpanContext(); span.IsRecording() && sc.HasTraceID() {
		l = l.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return l.WithContext(ctx)
}

// Middleware enriches every request context with a trace-aware logger.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(EnrichContextWithLogger(r.Context())))
	})
}
