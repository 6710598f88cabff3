// Package observe defines the three optional observer hooks the core
// consumes (spec §6): Output, Trace, and Metrics. Each has a no-op default
// so callers that don't care about observability pay nothing, grounded on
// the teacher's ExecutionObserver/MetricsCollector pattern
// (internal/infrastructure/monitoring) generalized to pflow's node
// execution model.
package observe

import "time"

// NodeStatus is the lifecycle state reported to Output.ShowNode.
type NodeStatus string

const (
	NodeStatusStart     NodeStatus = "start"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusCached    NodeStatus = "cached"
	NodeStatusError     NodeStatus = "error"
	NodeStatusRepaired  NodeStatus = "repaired"
)

// Output reports coarse human-facing progress (spec §6).
type Output interface {
	ShowProgress(msg string, isError bool)
	ShowNode(nodeID string, status NodeStatus, duration time.Duration)
}

// Trace records per-node execution detail for later inspection (spec §6).
type Trace interface {
	RecordNode(nodeID string, inputsResolved map[string]any, outputs map[string]any, duration time.Duration)
}

// LLMCallInfo is the opaque call-info record passed to Metrics.RecordLLM.
type LLMCallInfo struct {
	Model        string
	PromptTokens int
	OutputTokens int
	Duration     time.Duration
	Purpose      string // e.g. "repair", "node"
}

// MetricsSummary is the aggregate snapshot returned by Metrics.Summary.
type MetricsSummary struct {
	LLMCalls     int
	PromptTokens int
	OutputTokens int
}

// Metrics accumulates run-level counters (spec §6).
type Metrics interface {
	RecordLLM(call LLMCallInfo)
	Summary() MetricsSummary
}

// NoopOutput discards all progress events.
type NoopOutput struct{}

func (NoopOutput) ShowProgress(string, bool)               {}
func (NoopOutput) ShowNode(string, NodeStatus, time.Duration) {}

// NoopTrace discards all node traces.
type NoopTrace struct{}

func (NoopTrace) RecordNode(string, map[string]any, map[string]any, time.Duration) {}

// NoopMetrics discards all metrics.
type NoopMetrics struct{}

func (NoopMetrics) RecordLLM(LLMCallInfo)         {}
func (NoopMetrics) Summary() MetricsSummary       { return MetricsSummary{} }
