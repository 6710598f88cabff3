// Package llmrepair implements repair.Client against an OpenAI chat
// completion model, grounded on the teacher's OpenAICompletionExecutor
// (internal/application/executor/node_executors.go): same client
// construction, same prompt/response handling, generalized from "produce a
// text completion" to "produce a repaired workflow IR as JSON".
package llmrepair

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/smilemakc/pflow/internal/errextract"
	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/observe"
	"github.com/smilemakc/pflow/internal/repair"
)

// DefaultModel mirrors the teacher's OpenAICompletionExecutor default.
const DefaultModel = "gpt-4o"

// Client implements repair.Client over an OpenAI chat model.
type Client struct {
	openai  *openai.Client
	model   string
	metrics observe.Metrics
}

// New constructs a Client. apiKey and model follow the teacher's
// config>context>default resolution performed by the caller; model falls
// back to DefaultModel when empty.
func New(apiKey, model string, metrics observe.Metrics) *Client {
	if model == "" {
		model = DefaultModel
	}
	if metrics == nil {
		metrics = observe.NoopMetrics{}
	}
	return &Client{openai: openai.NewClient(apiKey), model: model, metrics: metrics}
}

// candidateEnvelope is the JSON shape the model is asked to return.
type candidateEnvelope struct {
	CandidateIR     ir.Workflow `json:"candidate_ir"`
	ModifiedNodeIDs []string    `json:"modified_node_ids"`
	Rationale       string      `json:"rationale"`
}

// Repair sends the failing IR and its errors to the model and parses its
// JSON reply into a repair.Result (spec §4.H).
func (c *Client) Repair(ctx context.Context, wf *ir.Workflow, errs []errextract.Record, sharedExcerpt map[string]any, params map[string]any, cacheHints any) (repair.Result, error) {
	prompt, err := buildPrompt(wf, errs, sharedExcerpt, params)
	if err != nil {
		return repair.Result{}, fmt.Errorf("llmrepair: building prompt: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := c.openai.CreateChatCompletion(ctx, req)
	latency := time.Since(start)
	if err != nil {
		return repair.Result{}, fmt.Errorf("llmrepair: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return repair.Result{}, fmt.Errorf("llmrepair: model returned no choices")
	}

	c.metrics.RecordLLM(observe.LLMCallInfo{
		Model:        c.model,
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Duration:     latency,
		Purpose:      "repair",
	})

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var env candidateEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		log.Warn().Str("raw_response", content).Msg("llmrepair: model reply was not valid JSON")
		return repair.Result{}, fmt.Errorf("llmrepair: parsing model reply: %w", err)
	}

	return repair.Result{
		CandidateIR:     &env.CandidateIR,
		ModifiedNodeIDs: env.ModifiedNodeIDs,
		Rationale:       env.Rationale,
	}, nil
}

const systemPrompt = `You repair broken workflow IR documents. You will be given the current ` +
	`IR, a list of structured errors, and a compact excerpt of the shared execution ` +
	`state. Return a JSON object with exactly three fields: candidate_ir (the full ` +
	`repaired workflow IR, preserving unrelated node ids and ordering), ` +
	`modified_node_ids (every node id whose params, type, or edges changed), and ` +
	`rationale (a short explanation). If nothing should change, return the ` +
	`original IR with an empty modified_node_ids array.`

func buildPrompt(wf *ir.Workflow, errs []errextract.Record, sharedExcerpt map[string]any, params map[string]any) (string, error) {
	irJSON, err := json.Marshal(wf)
	if err != nil {
		return "", err
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return "", err
	}
	excerptJSON, err := json.Marshal(sharedExcerpt)
	if err != nil {
		return "", err
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Current IR:\n")
	b.Write(irJSON)
	b.WriteString("\n\nErrors:\n")
	b.Write(errsJSON)
	b.WriteString("\n\nShared state excerpt:\n")
	b.Write(excerptJSON)
	b.WriteString("\n\nExecution params:\n")
	b.Write(paramsJSON)
	return b.String(), nil
}
