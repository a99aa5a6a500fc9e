// Package tracing wires up OpenTelemetry distributed tracing and provides
// StartHop, which starts a span for one asynchronous pipeline hop
// (ingest -> estimator -> selector) tagged with the domain trace_id as a
// span attribute — the spec's own end-to-end trace identifier (spec.md §1)
// riding alongside OTel's span-level trace id rather than replacing it.
// The pipeline services do not call StartHop, so no per-hop spans are
// emitted even when tracing is enabled. Setup
// shape (Config struct, Provider wrapper with Shutdown, graceful
// no-op-when-disabled fallback) is adapted from the pack's
// shared/go/observability/otel.go, trimmed to a single HTTP exporter
// since this pipeline has no gRPC collector dependency elsewhere.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TraceIDKey is the span attribute key carrying the domain trace id
// (spec.md's end-to-end identifier), distinct from OTel's own span
// trace id.
const TraceIDKey = attribute.Key("shift.trace_id")

// Config controls tracer-provider initialization.
type Config struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Provider wraps the tracer provider and exposes Shutdown and Tracer.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Init configures the global tracer provider. When cfg.Enabled is false
// (the default — spec.md's Non-goals exclude a mandated tracing backend),
// it installs OTel's no-op provider so every Tracer() call is free.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	))
	if err != nil {
		return nil, fmt.Errorf("create OTLP trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Provider{tp: tp}, nil
}

// Shutdown flushes and closes the exporter. Safe to call on a disabled
// (no-op) Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns a named tracer from the global provider (real or no-op).
func Tracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}

// StartHop starts a span for one asynchronous pipeline hop, tagging it
// with the domain trace id so spans across ingest/estimator/selector can
// be correlated by that identifier even though they are not linked via
// OTel's own trace-context propagation (the message bus carries only the
// domain trace id, not a W3C traceparent header).
func StartHop(ctx context.Context, tracerName, hopName, domainTraceID string) (context.Context, oteltrace.Span) {
	ctx, span := Tracer(tracerName).Start(ctx, hopName)
	span.SetAttributes(TraceIDKey.String(domainTraceID))
	return ctx, span
}
