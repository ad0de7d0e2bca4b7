package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/warp/attendance-engine/logger"
)

func TestSetup_Levels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	logger.Setup(false, "")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	logger.Setup(false, "warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	logger.Setup(false, "not-a-level")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestEnrichContextWithLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	t.Run("without span", func(t *testing.T) {
		buf.Reset()
		ctx := logger.EnrichContextWithLogger(context.Background())
		log.Ctx(ctx).Info().Msg("plain")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.NotContains(t, entry, "trace_id")
	})

	t.Run("with recording span", func(t *testing.T) {
		buf.Reset()
		tp := sdktrace.NewTracerProvider()
		defer tp.Shutdown(context.Background())
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		ctx = logger.EnrichContextWithLogger(ctx)
		log.Ctx(ctx).Info().Msg("traced")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	})
}
