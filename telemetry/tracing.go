// Package telemetry sets up OpenTelemetry tracing and propagates trace
// context into outgoing SQS messages.
package telemetry

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Exporter names accepted by InitTracer.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// InitTracer installs the global tracer provider. With ExporterNone the
// default no-op provider stays in place and the returned shutdown does nothing.
func InitTracer(ctx context.Context, serviceName, exporterName, endpoint string) (func(context.Context) error, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch exporterName {
	case "", ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithInsecure(), otlptracegrpc.WithEndpoint(endpoint))
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporterName)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s trace exporter: %w", exporterName, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}

// InjectTraceContext writes the current trace context into SQS message
// attributes, merged into attrs (which may be nil).
func InjectTraceContext(ctx context.Context, attrs map[string]types.MessageAttributeValue) map[string]types.MessageAttributeValue {
	if attrs == nil {
		attrs = make(map[string]types.MessageAttributeValue)
	}
	otel.GetTextMapPropagator().Inject(ctx, sqsCarrier{attrs: attrs})
	return attrs
}

// ExtractTraceContext is the consumer side of InjectTraceContext.
func ExtractTraceContext(ctx context.Context, attrs map[string]types.MessageAttributeValue) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, sqsCarrier{attrs: attrs})
}

// sqsCarrier implements propagation.TextMapCarrier over SQS attributes.
type sqsCarrier struct {
	attrs map[string]types.MessageAttributeValue
}

func (c sqsCarrier) Get(key string) string {
	if attr, ok := c.attrs[key]; ok && attr.StringValue != nil {
		return *attr.StringValue
	}
	return ""
}

func (c sqsCarrier) Set(key string, value string) {
	c.attrs[key] = types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(value),
	}
}

func (c sqsCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
