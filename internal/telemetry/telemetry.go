// Package telemetry wires the proxy's OpenTelemetry tracer provider and
// span helpers. Grounded on two teacher packages: pkg/telemetry's
// Settings/GetTracer split (disabled-by-default, noop tracer when off) and
// pkg/observability/mlflow's OTLP-over-HTTP exporter + sdktrace.
// TracerProvider construction — generalized from "export to an MLflow
// tracking server" to "export to any OTLP/HTTP collector," since spec §4
// names no specific observability backend, only that spans exist around
// backend dispatch.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the name used for every span this proxy emits.
const TracerName = "proxycore"

// Settings configures telemetry. Disabled by default, matching the
// teacher's telemetry.Settings.
type Settings struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	Insecure       bool
	Headers        map[string]string
	RecordRequests bool
	RecordResponses bool
}

// DefaultSettings returns a disabled Settings with the recording flags the
// teacher defaults to true (content recording only matters once enabled).
func DefaultSettings() Settings {
	return Settings{
		ServiceName:     "proxycore",
		RecordRequests:  true,
		RecordResponses: true,
	}
}

// Provider owns the tracer provider lifecycle; Shutdown flushes and closes
// the OTLP exporter.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider builds a tracer provider from settings. When settings.Enabled
// is false, it returns a Provider backed by a noop tracer — Shutdown is
// then a no-op.
func NewProvider(ctx context.Context, settings Settings) (*Provider, error) {
	if !settings.Enabled {
		return &Provider{}, nil
	}
	if settings.OTLPEndpoint == "" {
		return nil, fmt.Errorf("telemetry: OTLPEndpoint is required when telemetry is enabled")
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(settings.OTLPEndpoint),
		otlptracehttp.WithHeaders(settings.Headers),
	}
	if settings.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	serviceName := settings.ServiceName
	if serviceName == "" {
		serviceName = "proxycore"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// Tracer returns the provider's tracer, or a noop tracer when telemetry is
// disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tp == nil {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	return p.tp.Tracer(TracerName)
}

// Shutdown flushes pending spans and releases exporter resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// SpanOptions configures one RecordSpan call.
type SpanOptions struct {
	Name       string
	Attributes []attribute.KeyValue
}

// RecordSpan runs fn inside a span named opts.Name, recording any returned
// error on the span before propagating it. Grounded on the teacher's
// generic telemetry.RecordSpan[T].
func RecordSpan[T any](ctx context.Context, tracer trace.Tracer, opts SpanOptions, fn func(context.Context, trace.Span) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, opts.Name, trace.WithAttributes(opts.Attributes...))
	defer span.End()

	result, err := fn(ctx, span)
	if err != nil {
		RecordError(span, err)
		var zero T
		return zero, err
	}
	return result, nil
}

// RecordError records err on span and marks the span's status as errored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
