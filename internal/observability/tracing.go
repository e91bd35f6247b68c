package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// TracingEnabled reports whether an OTLP endpoint is configured.
func TracingEnabled() bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" || os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != ""
}

// InitTracer exports spans over OTLP gRPC and installs W3C trace-context
// propagation so callers' traceparent headers join the job trace.
// The caller must Shutdown the returned provider.
func InitTracer(ctx context.Context, serviceName, version string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := TraceResource(ctx, serviceName, version)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(SampleRatio()))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// TraceResource describes this process: service name and version, the
// DEPLOYMENT_ENVIRONMENT (default production), the host and any
// OTEL_RESOURCE_ATTRIBUTES.
func TraceResource(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
	env := os.Getenv("DEPLOYMENT_ENVIRONMENT")
	if env == "" {
		env = "production"
	}
	own, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
			semconv.DeploymentEnvironmentName(env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	res, err := resource.Merge(resource.Default(), own)
	if err != nil {
		return nil, fmt.Errorf("merge resource: %w", err)
	}
	return res, nil
}

// SampleRatio reads TRACE_SAMPLE_RATIO. Missing or invalid values sample
// everything; the value is clamped to [0, 1].
func SampleRatio() float64 {
	v, err := strconv.ParseFloat(os.Getenv("TRACE_SAMPLE_RATIO"), 64)
	switch {
	case err != nil:
		return 1
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
