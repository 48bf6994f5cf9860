package gateway

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ResourceAttributes describes the mesh to the tracing backend. The source is
// reported as configured, before interpolation, so env values never leak.
func ResourceAttributes(option MeshOption, version string) []attribute.KeyValue {
	names := make([]string, 0, len(option.Subgraphs))
	for _, s := range option.Subgraphs {
		names = append(names, s.Name)
	}

	return []attribute.KeyValue{
		attribute.String("service.name", option.Opentelemetry.ServiceName),
		attribute.String("service.version", version),
		attribute.String("mesh.source", option.Source),
		attribute.Bool("mesh.batch", option.BatchEnabled()),
		attribute.StringSlice("mesh.subgraphs", names),
	}
}

// InitTracer installs an OTLP/HTTP tracer provider for the mesh and returns its shutdown function.
func InitTracer(ctx context.Context, option MeshOption, version string) (func(context.Context) error, error) {
	var exporterOpts []otlptracehttp.Option
	if ep := option.Opentelemetry.TracingSetting.Endpoint; ep != "" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpointURL(ep))
	}

	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(ResourceAttributes(option, version)...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
