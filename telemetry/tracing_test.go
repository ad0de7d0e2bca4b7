package telemetry_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/attendance-engine/telemetry"
)

func TestInitTracer_None(t *testing.T) {
	shutdown, err := telemetry.InitTracer(context.Background(), "attendance-engine", telemetry.ExporterNone, "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_UnknownExporter(t *testing.T) {
	_, err := telemetry.InitTracer(context.Background(), "attendance-engine", "zipkin", "")
	assert.Error(t, err)
}

func TestTraceContext_RoundTrip(t *testing.T) {
	// GIVEN: A context carrying a sampled remote span
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	// WHEN: It is injected into message attributes and extracted again
	attrs := telemetry.InjectTraceContext(ctx, map[string]types.MessageAttributeValue{})
	got := trace.SpanContextFromContext(telemetry.ExtractTraceContext(context.Background(), attrs))

	// THEN: The trace survives the trip
	require.Contains(t, attrs, "traceparent")
	assert.Equal(t, "String", *attrs["traceparent"].DataType)
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
}
