// Package tracer sets up OpenTelemetry tracing for a service.
package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds the settings for the exporter. Tracing is off when the
// endpoint is empty.
type Config struct {
	ServiceName string
	EndpointURL string
	Probability float64
}

// Setup registers the global tracer provider and returns a tracer for the
// service along with the function that flushes pending spans. When tracing
// is off a no-op tracer is returned and nothing is registered.
func Setup(ctx context.Context, cfg Config) (trace.Tracer, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	if cfg.EndpointURL == "" {
		return noop.NewTracerProvider().Tracer(cfg.ServiceName), noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.EndpointURL),
	)
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("creating exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("creating resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.Probability > 0 && cfg.Probability < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Probability))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Tracer(cfg.ServiceName), tp.Shutdown, nil
}
