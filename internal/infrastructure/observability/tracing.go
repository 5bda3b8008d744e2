package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type TracingConfig struct {
	ServiceName    string
	InstanceID     string
	JaegerEndpoint string
	Enabled        bool
	SampleRatio    float64
}

// Tracer owns the process-wide tracer provider. Shutdown flushes pending spans.
type Tracer struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// InitTracer installs a global tracer provider exporting to Jaeger. When
// tracing is disabled a no-op provider is installed instead.
func InitTracer(cfg TracingConfig) (*Tracer, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return &Tracer{provider: tp, shutdown: func(context.Context) error { return nil }}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.instance.id", cfg.InstanceID),
		)),
	)
	otel.SetTracerProvider(tp)

	return &Tracer{provider: tp, shutdown: tp.Shutdown}, nil
}

func (t *Tracer) Provider() trace.TracerProvider {
	return t.provider
}

func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
