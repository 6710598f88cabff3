package observe

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerProviderConfig mirrors the teacher's tracing.Config
// (backend/internal/infrastructure/tracing/tracing.go), trimmed to the
// sampler knob this module actually needs — pflow has no OTLP exporter
// dependency in its own go.mod, so NewTracerProvider builds an in-process
// sdktrace.TracerProvider a caller can attach their own SpanProcessor to,
// rather than assuming a specific collector endpoint.
type TracerProviderConfig struct {
	ServiceName string
	SampleRate  float64
}

// Provider wraps an sdktrace.TracerProvider for lifecycle management,
// grounded on the teacher's tracing.Provider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewTracerProvider builds a Provider with a sampler derived from
// cfg.SampleRate (>=1 always samples, <=0 never samples, otherwise
// ratio-based), matching the teacher's sampler selection.
func NewTracerProvider(cfg TracerProviderConfig, opts ...sdktrace.TracerProviderOption) *Provider {
	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	allOpts := append([]sdktrace.TracerProviderOption{sdktrace.WithSampler(sampler)}, opts...)
	tp := sdktrace.NewTracerProvider(allOpts...)
	return &Provider{tp: tp}
}

// Tracer returns a named tracer from the underlying provider, ready to
// pass to NewOTelTrace.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Shutdown flushes and stops the underlying provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}
