package observe

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromMetrics_AccumulatesSummary(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPromMetrics(reg)

	m.RecordLLM(LLMCallInfo{Model: "gpt-4o", PromptTokens: 100, OutputTokens: 20, Duration: 50 * time.Millisecond})
	m.RecordLLM(LLMCallInfo{Model: "gpt-4o", PromptTokens: 30, OutputTokens: 5, Duration: 10 * time.Millisecond})

	sum := m.Summary()
	assert.Equal(t, 2, sum.LLMCalls)
	assert.Equal(t, 130, sum.PromptTokens)
	assert.Equal(t, 25, sum.OutputTokens)
}

func TestNewPromMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPromMetrics(reg)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["pflow_llm_calls_total"])
	assert.True(t, names["pflow_llm_call_duration_seconds"])
}
