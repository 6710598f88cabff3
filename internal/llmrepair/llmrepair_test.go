package llmrepair

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/pflow/internal/errextract"
	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/observe"
)

func TestNew_DefaultsModelWhenEmpty(t *testing.T) {
	c := New("sk-test", "", nil)
	assert.Equal(t, DefaultModel, c.model)
	assert.NotNil(t, c.metrics)
}

func TestNew_KeepsExplicitModel(t *testing.T) {
	c := New("sk-test", "gpt-4o-mini", nil)
	assert.Equal(t, "gpt-4o-mini", c.model)
}

func TestBuildPrompt_IncludesAllSections(t *testing.T) {
	wf := &ir.Workflow{IRVersion: "1", Nodes: []ir.Node{{ID: "a", Type: "echo"}}}
	errs := []errextract.Record{{NodeID: "a", Message: "boom"}}
	excerpt := map[string]any{"a": map[string]any{"value": 1}}
	params := map[string]any{"x": 1}

	prompt, err := buildPrompt(wf, errs, excerpt, params)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Current IR:")
	assert.Contains(t, prompt, "Errors:")
	assert.Contains(t, prompt, "Shared state excerpt:")
	assert.Contains(t, prompt, "Execution params:")
	assert.Contains(t, prompt, "boom")
}

// chatResponse builds a minimal chat-completion response body carrying env
// as the assistant message content, the shape Repair expects to parse.
func chatResponse(t *testing.T, env candidateEnvelope) []byte {
	t.Helper()
	content, err := json.Marshal(env)
	require.NoError(t, err)

	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: string(content)}},
		},
	}
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	return body
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = server.URL + "/v1"
	return &Client{openai: openai.NewClientWithConfig(cfg), model: DefaultModel, metrics: observe.NoopMetrics{}}
}

func TestRepair_ParsesCandidateFromModelReply(t *testing.T) {
	want := candidateEnvelope{
		CandidateIR:     ir.Workflow{IRVersion: "1", Nodes: []ir.Node{{ID: "a", Type: "echo"}}},
		ModifiedNodeIDs: []string{"a"},
		Rationale:       "fixed the type",
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(chatResponse(t, want))
	})

	result, err := client.Repair(context.Background(), &ir.Workflow{IRVersion: "1"}, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, result.CandidateIR)
	assert.Equal(t, "echo", result.CandidateIR.Nodes[0].Type)
	assert.Equal(t, []string{"a"}, result.ModifiedNodeIDs)
	assert.Equal(t, "fixed the type", result.Rationale)
}

func TestRepair_InvalidJSONReplyErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "not json"}},
			},
		}
		body, _ := json.Marshal(resp)
		w.Write(body)
	})

	_, err := client.Repair(context.Background(), &ir.Workflow{IRVersion: "1"}, nil, nil, nil, nil)
	assert.ErrorContains(t, err, "parsing model reply")
}
