package validate

import (
	"context"
	"testing"

	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/registry"
	"github.com/stretchr/testify/assert"
)

type noopNode struct{}

func (noopNode) InputSpec() map[string]registry.FieldSpec  { return nil }
func (noopNode) OutputSpec() map[string]registry.FieldSpec {
	return map[string]registry.FieldSpec{"content": {Type: "string"}}
}
func (noopNode) Exec(ctx context.Context, params map[string]any, execCtx map[string]any) (map[string]any, string, error) {
	return nil, "default", nil
}

func baseWorkflow() *ir.Workflow {
	return &ir.Workflow{
		IRVersion: "1.0",
		Nodes: []ir.Node{
			{ID: "read", Type: "readfile", Params: map[string]any{"path": "${file}"}},
			{ID: "write", Type: "writefile", Params: map[string]any{"content": "${read.content}"}},
		},
		Edges: []ir.Edge{
			{From: "read", To: "write"},
		},
		Inputs: map[string]ir.InputSpec{
			"file": {Type: ir.InputTypeString, Required: true},
		},
	}
}

func TestValidate_CleanWorkflowHasNoErrors(t *testing.T) {
	errs := Validate(baseWorkflow(), nil, nil, true)
	assert.Empty(t, errs)
}

func TestValidate_DuplicateIDDetected(t *testing.T) {
	wf := baseWorkflow()
	wf.Nodes[1].ID = "read"
	errs := Validate(wf, nil, nil, true)
	assert.Contains(t, joinErrs(errs), "duplicate node id")
}

func TestValidate_CycleDetected(t *testing.T) {
	wf := baseWorkflow()
	wf.Edges = append(wf.Edges, ir.Edge{From: "write", To: "read"})
	errs := Validate(wf, nil, nil, true)
	assert.Contains(t, joinErrs(errs), "cycle detected")
}

func TestValidate_TemplateReferencingLaterNodeFails(t *testing.T) {
	wf := baseWorkflow()
	wf.Nodes[0].Params["path"] = "${write.content}"
	errs := Validate(wf, nil, nil, true)
	assert.Contains(t, joinErrs(errs), "does not precede")
}

func TestValidate_UnknownNodeTypeDetectedWhenRegistryGiven(t *testing.T) {
	wf := baseWorkflow()
	reg := registry.New()
	reg.Register("readfile", func() registry.Node { return noopNode{} }, "")
	errs := Validate(wf, nil, reg, false)
	assert.Contains(t, joinErrs(errs), `"writefile" is not a registered node type`)
}

func TestValidate_JSONAntiPatternFlagged(t *testing.T) {
	wf := baseWorkflow()
	wf.Nodes[1].Params["content"] = `{"text": "${read.content}"}`
	errs := Validate(wf, nil, nil, true)
	assert.Contains(t, joinErrs(errs), "hand-authored JSON")
}

func TestValidate_MissingRequiredInputDetected(t *testing.T) {
	wf := baseWorkflow()
	errs := Validate(wf, map[string]any{}, nil, true)
	assert.Contains(t, joinErrs(errs), "required input has no default")
}

func joinErrs(errs []string) string {
	out := ""
	for _, e := range errs {
		out += e + "\n"
	}
	return out
}
