package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OTelTrace implements Trace by emitting one span per node execution.
// Pair it with NewTracerProvider (otel_provider.go) when the caller has no
// tracer of its own to hand in.
type OTelTrace struct {
	tracer trace.Tracer
	ctx    context.Context
}

// NewOTelTrace builds a Trace implementation backed by tracer. ctx is the
// parent context spans are created under; callers without a natural parent
// may pass context.Background().
func NewOTelTrace(ctx context.Context, tracer trace.Tracer) *OTelTrace {
	return &OTelTrace{tracer: tracer, ctx: ctx}
}

func (t *OTelTrace) RecordNode(nodeID string, inputsResolved map[string]any, outputs map[string]any, duration time.Duration) {
	_, span := t.tracer.Start(t.ctx, "node."+nodeID)
	defer span.End()
	span.SetAttributes(
		attribute.String("pflow.node_id", nodeID),
		attribute.Int64("pflow.duration_ms", duration.Milliseconds()),
		attribute.Int("pflow.input_keys", len(inputsResolved)),
		attribute.Int("pflow.output_keys", len(outputs)),
	)
}
