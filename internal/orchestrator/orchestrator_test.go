package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/pflow/internal/errextract"
	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/registry"
	"github.com/smilemakc/pflow/internal/repair"
)

type echoNode struct {
	fail bool
}

func (echoNode) InputSpec() map[string]registry.FieldSpec  { return nil }
func (echoNode) OutputSpec() map[string]registry.FieldSpec { return map[string]registry.FieldSpec{"ok": {Type: "boolean"}} }
func (n echoNode) Exec(ctx context.Context, params map[string]any, execCtx map[string]any) (map[string]any, string, error) {
	if n.fail {
		return map[string]any{"error": "boom"}, "error:execution_failure", nil
	}
	return map[string]any{"ok": true}, "default", nil
}

func baseRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register("echo", func() registry.Node { return echoNode{} }, "echoes back")
	return reg
}

// captureNode returns its resolved params verbatim as outputs, so a test
// can assert on what template resolution actually handed the node.
type captureNode struct{}

func (captureNode) InputSpec() map[string]registry.FieldSpec  { return nil }
func (captureNode) OutputSpec() map[string]registry.FieldSpec { return nil }
func (captureNode) Exec(ctx context.Context, params map[string]any, execCtx map[string]any) (map[string]any, string, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out, "default", nil
}

func TestExecuteWorkflow_DeclaredInputDefaultResolvesWithoutParam(t *testing.T) {
	reg := registry.New()
	reg.Register("capture", func() registry.Node { return captureNode{} }, "")

	wf := &ir.Workflow{
		IRVersion: "1.0",
		Nodes: []ir.Node{
			{ID: "a", Type: "capture", Params: map[string]any{"msg": "${greeting}"}},
		},
		Edges:     []ir.Edge{},
		StartNode: "a",
		Inputs: map[string]ir.InputSpec{
			"greeting": {Type: ir.InputTypeString, Default: "hello"},
		},
		Outputs: map[string]ir.OutputSpec{"result": {Source: "${a.msg}"}},
	}

	o := New(reg, nil, nil, nil, nil)
	res := o.ExecuteWorkflow(context.Background(), wf, nil, false, nil)

	require.True(t, res.Success)
	assert.Equal(t, "hello", res.OutputData["result"])
}

// cancelingEchoNode cancels ctx as a side effect of running successfully,
// so a workflow can be driven into the S6 mid-run cancellation shape
// without the test racing a goroutine against the executor.
type cancelingEchoNode struct {
	cancel context.CancelFunc
}

func (cancelingEchoNode) InputSpec() map[string]registry.FieldSpec  { return nil }
func (cancelingEchoNode) OutputSpec() map[string]registry.FieldSpec { return nil }
func (n cancelingEchoNode) Exec(ctx context.Context, params map[string]any, execCtx map[string]any) (map[string]any, string, error) {
	n.cancel()
	return map[string]any{"ok": true}, "default", nil
}

// countingRepair records how many times Repair was invoked without doing
// anything useful, so a test can assert it was never called.
type countingRepair struct {
	calls int
}

func (r *countingRepair) Repair(ctx context.Context, wf *ir.Workflow, errs []errextract.Record, sharedExcerpt map[string]any, params map[string]any, cacheHints any) (repair.Result, error) {
	r.calls++
	return repair.Result{}, nil
}

func TestExecuteWorkflow_CancelledMidRunSkipsRepair(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	reg := registry.New()
	reg.Register("start", func() registry.Node { return cancelingEchoNode{cancel: cancel} }, "")
	reg.Register("echo", func() registry.Node { return echoNode{} }, "")

	wf := &ir.Workflow{
		IRVersion: "1.0",
		Nodes: []ir.Node{
			{ID: "a", Type: "start"},
			{ID: "b", Type: "echo"},
		},
		Edges:     []ir.Edge{{From: "a", To: "b"}},
		StartNode: "a",
	}

	rc := &countingRepair{}
	o := New(reg, rc, nil, nil, nil)
	res := o.ExecuteWorkflow(ctx, wf, nil, true, nil)

	require.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, errextract.CategoryCancelled, res.Errors[0].Category)
	assert.Equal(t, 0, rc.calls, "orchestrator must not attempt repair on a cancelled run")
}

func linearWorkflow() *ir.Workflow {
	return &ir.Workflow{
		IRVersion: "1.0",
		Nodes: []ir.Node{
			{ID: "a", Type: "echo"},
			{ID: "b", Type: "echo"},
		},
		Edges:     []ir.Edge{{From: "a", To: "b"}},
		StartNode: "a",
		Outputs:   map[string]ir.OutputSpec{"result": {Source: "${b.ok}"}},
	}
}

func TestExecuteWorkflow_SucceedsWithoutRepair(t *testing.T) {
	o := New(baseRegistry(), nil, nil, nil, nil)
	res := o.ExecuteWorkflow(context.Background(), linearWorkflow(), nil, false, nil)

	require.True(t, res.Success)
	assert.Equal(t, 2, res.NodeCount)
	assert.Nil(t, res.RepairedWorkflowIR)
	assert.Equal(t, true, res.OutputData["result"])
}

func TestExecuteWorkflow_FailsFastWithoutRepair(t *testing.T) {
	wf := linearWorkflow()

	reg := registry.New()
	reg.Register("echo", func() registry.Node { return echoNode{fail: true} }, "")

	o := New(reg, nil, nil, nil, nil)
	res := o.ExecuteWorkflow(context.Background(), wf, nil, false, nil)

	require.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "a", res.Errors[0].NodeID)
}

// scriptedRepair rewrites the failing "a" node to succeed on its first
// call, returning an empty-change result on every subsequent call so the
// orchestrator does not loop forever if the test's expectations are wrong.
type scriptedRepair struct {
	calls int
}

func (r *scriptedRepair) Repair(ctx context.Context, wf *ir.Workflow, errs []errextract.Record, sharedExcerpt map[string]any, params map[string]any, cacheHints any) (repair.Result, error) {
	r.calls++
	if r.calls > 1 {
		return repair.Result{}, nil
	}
	candidate := wf.Clone()
	for i := range candidate.Nodes {
		if candidate.Nodes[i].ID == "a" {
			candidate.Nodes[i].Type = "echo-fixed"
		}
	}
	return repair.Result{CandidateIR: candidate, ModifiedNodeIDs: []string{"a"}, Rationale: "rewired a"}, nil
}

func TestExecuteWorkflow_RepairsRuntimeFailureAndResumes(t *testing.T) {
	reg := registry.New()
	reg.Register("echo", func() registry.Node { return echoNode{fail: true} }, "")
	reg.Register("echo-fixed", func() registry.Node { return echoNode{} }, "")
	reg.Register("echo-ok", func() registry.Node { return echoNode{} }, "")

	wf := &ir.Workflow{
		IRVersion: "1.0",
		Nodes: []ir.Node{
			{ID: "a", Type: "echo"},
			{ID: "b", Type: "echo-ok"},
		},
		Edges:     []ir.Edge{{From: "a", To: "b"}},
		StartNode: "a",
	}

	rc := &scriptedRepair{}
	o := New(reg, rc, nil, nil, nil)
	res := o.ExecuteWorkflow(context.Background(), wf, nil, true, nil)

	require.True(t, res.Success)
	require.NotNil(t, res.RepairedWorkflowIR)
	assert.Equal(t, 1, rc.calls)
	assert.Contains(t, res.SharedAfter.ModifiedNodes, "a")
}

func TestExecuteWorkflow_ValidationPhaseRepairsUnknownNodeType(t *testing.T) {
	reg := registry.New()
	reg.Register("echo", func() registry.Node { return echoNode{} }, "")

	wf := &ir.Workflow{
		IRVersion: "1.0",
		Nodes: []ir.Node{
			{ID: "a", Type: "does-not-exist"},
		},
		Edges:     []ir.Edge{},
		StartNode: "a",
	}

	rc := &fixTypeRepair{}
	o := New(reg, rc, nil, nil, nil)
	res := o.ExecuteWorkflow(context.Background(), wf, nil, true, nil)

	require.True(t, res.Success)
	assert.Equal(t, 1, rc.calls)
}

type fixTypeRepair struct {
	calls int
}

func (r *fixTypeRepair) Repair(ctx context.Context, wf *ir.Workflow, errs []errextract.Record, sharedExcerpt map[string]any, params map[string]any, cacheHints any) (repair.Result, error) {
	r.calls++
	candidate := wf.Clone()
	for i := range candidate.Nodes {
		candidate.Nodes[i].Type = "echo"
	}
	return repair.Result{CandidateIR: candidate, ModifiedNodeIDs: []string{"a"}, Rationale: "fixed type"}, nil
}

func TestExecuteWorkflow_LoopDetectionStopsRepeatedFailure(t *testing.T) {
	reg := registry.New()
	reg.Register("echo", func() registry.Node { return echoNode{fail: true} }, "")

	wf := &ir.Workflow{
		IRVersion: "1.0",
		Nodes:     []ir.Node{{ID: "a", Type: "echo"}},
		Edges:     []ir.Edge{},
		StartNode: "a",
	}

	rc := &noopChangeThenSameRepair{}
	o := New(reg, rc, nil, nil, nil)
	res := o.ExecuteWorkflow(context.Background(), wf, nil, true, nil)

	require.False(t, res.Success)
	assert.LessOrEqual(t, rc.calls, MaxRuntimeLoops*MaxInnerRepairs)
}

// noopChangeThenSameRepair always "repairs" by touching an unrelated param,
// so the workflow still fails with the exact same error every time —
// exercising loop detection rather than attempt exhaustion.
type noopChangeThenSameRepair struct {
	calls int
}

func (r *noopChangeThenSameRepair) Repair(ctx context.Context, wf *ir.Workflow, errs []errextract.Record, sharedExcerpt map[string]any, params map[string]any, cacheHints any) (repair.Result, error) {
	r.calls++
	candidate := wf.Clone()
	candidate.Nodes[0].Purpose = "still broken"
	return repair.Result{CandidateIR: candidate, ModifiedNodeIDs: []string{"a"}, Rationale: "no-op"}, nil
}
