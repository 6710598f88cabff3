package errextract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/sharedstore"
)

func wfWithNode(id, typ string) *ir.Workflow {
	return &ir.Workflow{IRVersion: "1", Nodes: []ir.Node{{ID: id, Type: typ}}}
}

func TestExtract_TemplateFailure(t *testing.T) {
	wf := wfWithNode("a", "echo")
	s := sharedstore.New()
	s.SetNodeOutput("a", map[string]any{"error": "unresolved reference ${missing.field}"})
	s.Execution.MarkCompleted("a", "h1", "error:template_failed", true)

	rec := Extract(wf, s, "error:template_failed", 0)
	assert.Equal(t, "a", rec.NodeID)
	assert.Equal(t, "echo", rec.NodeType)
	assert.Equal(t, CategoryTemplate, rec.Category)
	assert.NotEmpty(t, rec.AvailableFields)
}

func TestExtract_APIValidationCapturesStatusAndRaw(t *testing.T) {
	wf := wfWithNode("a", "http")
	s := sharedstore.New()
	s.SetNodeOutput("a", map[string]any{
		"error":            "Input should be a valid string",
		"status_code":      422,
		"raw_response":     strings.Repeat("x", 100),
		"response_headers": map[string]any{"content-type": "application/json"},
	})
	s.Execution.MarkCompleted("a", "h1", "error:execution_failure", true)

	rec := Extract(wf, s, "error:execution_failure", 10)
	assert.Equal(t, CategoryAPIValid, rec.Category)
	assert.Equal(t, 422, rec.StatusCode)
	assert.True(t, rec.Truncated)
	assert.Len(t, rec.RawResponse, 10)
	assert.Equal(t, "application/json", rec.ResponseHeaders["content-type"])
}

func TestExtract_DefaultsToExecutionFailure(t *testing.T) {
	wf := wfWithNode("a", "echo")
	s := sharedstore.New()
	s.SetNodeOutput("a", map[string]any{"error": "boom"})
	s.Execution.MarkCompleted("a", "h1", "error:execution_failure", true)

	rec := Extract(wf, s, "error:execution_failure", 0)
	assert.Equal(t, CategoryExecFailed, rec.Category)
	assert.Equal(t, "boom", rec.Message)
}

func TestExtract_NonRepairableMarksUnfixable(t *testing.T) {
	wf := wfWithNode("a", "http")
	s := sharedstore.New()
	s.MarkNonRepairable()
	s.SetNodeOutput("a", map[string]any{"error": "not found"})
	s.Execution.MarkCompleted("a", "h1", "error:execution_failure", true)

	rec := Extract(wf, s, "error:execution_failure", 0)
	assert.False(t, rec.Fixable)
}

func TestExtract_MessageFallsBackToSynthesizedAction(t *testing.T) {
	wf := wfWithNode("a", "echo")
	s := sharedstore.New()
	s.SetNodeOutput("a", map[string]any{})
	s.Execution.MarkCompleted("a", "h1", "error:execution_failure", true)

	rec := Extract(wf, s, "error:execution_failure", 0)
	assert.Equal(t, "node returned action error:execution_failure", rec.Message)
}

func TestFromStatic(t *testing.T) {
	rec := FromStatic("nodes[0].type: unknown node type \"bogus\"")
	assert.Equal(t, CategoryStatic, rec.Category)
	assert.Equal(t, "static", rec.Source)
	require.True(t, rec.Fixable)
}
