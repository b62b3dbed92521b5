// Package telemetry sets up OpenTelemetry tracing for window navigation.
// Tracing is exported over OTLP/HTTP when OTEL_EXPORTER_OTLP_ENDPOINT is
// set and is a no-op otherwise.
package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// EndpointEnv enables export when set.
	EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"
	// ServiceEnv overrides the service name.
	ServiceEnv = "OTEL_SERVICE_NAME"

	defaultService = "uiv1"
)

// Provider hands out tracers.
type Provider struct {
	sdk  *sdktrace.TracerProvider
	noop trace.TracerProvider
}

// New creates a provider from the environment. getenv defaults to
// os.Getenv.
func New(ctx context.Context, getenv func(string) string) (*Provider, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	endpoint := getenv(EndpointEnv)
	if endpoint == "" {
		return &Provider{noop: noop.NewTracerProvider()}, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	service := getenv(ServiceEnv)
	if service == "" {
		service = defaultService
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(service),
	)

	return &Provider{
		sdk: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		),
	}, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.sdk != nil
}

// Tracer returns a named tracer.
func (p *Provider) Tracer(name string) trace.Tracer {
	if !p.Enabled() {
		if p == nil || p.noop == nil {
			return noop.NewTracerProvider().Tracer(name)
		}
		return p.noop.Tracer(name)
	}
	return p.sdk.Tracer(name)
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
