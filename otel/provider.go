package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OTLP trace pipeline.
type ProviderConfig struct {
	// Endpoint is the OTLP HTTP collector endpoint, host:port. Empty uses
	// the exporter's default (localhost:4318) or the standard OTEL_*
	// environment variables.
	Endpoint string

	// Insecure disables TLS on the exporter connection.
	Insecure bool

	// ServiceName identifies this process in traces. Defaults to
	// "toolweave".
	ServiceName string
}

// SetupTracing installs a global OTLP-backed tracer provider and returns a
// shutdown function that flushes pending spans. Callers should defer the
// shutdown with a bounded context.
func SetupTracing(ctx context.Context, cfg ProviderConfig) (func(context.Context) error, error) {
	var exporterOpts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("otel: creating trace exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "toolweave"
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("otel: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
