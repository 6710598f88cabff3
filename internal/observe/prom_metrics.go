package observe

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics implements Metrics atop prometheus counters/histograms,
// grounded on the teacher's MetricsCollector (internal/infrastructure/
// monitoring/metrics.go) but generalized from an in-process struct to
// registered Prometheus collectors per SPEC_FULL §2.
type PromMetrics struct {
	mu sync.Mutex

	calls        prometheus.Counter
	promptTokens prometheus.Counter
	outputTokens prometheus.Counter
	duration     prometheus.Histogram

	summary MetricsSummary
}

// NewPromMetrics registers pflow's LLM-call counters/histogram against reg
// and returns a Metrics implementation.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		calls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pflow_llm_calls_total",
			Help: "Total number of LLM calls made during repair or node execution.",
		}),
		promptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pflow_llm_prompt_tokens_total",
			Help: "Total prompt tokens consumed by LLM calls.",
		}),
		outputTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pflow_llm_output_tokens_total",
			Help: "Total output tokens produced by LLM calls.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pflow_llm_call_duration_seconds",
			Help:    "Duration of LLM calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.calls, m.promptTokens, m.outputTokens, m.duration)
	return m
}

func (m *PromMetrics) RecordLLM(call LLMCallInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Inc()
	m.promptTokens.Add(float64(call.PromptTokens))
	m.outputTokens.Add(float64(call.OutputTokens))
	m.duration.Observe(call.Duration.Seconds())

	m.summary.LLMCalls++
	m.summary.PromptTokens += call.PromptTokens
	m.summary.OutputTokens += call.OutputTokens
}

func (m *PromMetrics) Summary() MetricsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}
