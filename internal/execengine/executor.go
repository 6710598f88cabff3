// Package execengine implements the Executor Service (spec §4.F): it
// drives a CompiledFlow one node at a time, resuming from a prior failure
// when the shared store's checkpoint carries one.
package execengine

import (
	"context"
	"time"

	"github.com/smilemakc/pflow/internal/compiler"
	"github.com/smilemakc/pflow/internal/errextract"
	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/observe"
	"github.com/smilemakc/pflow/internal/sharedstore"
	"github.com/smilemakc/pflow/internal/tmpl"
)

// Executor runs a single CompiledFlow attempt. It is single-threaded per
// run (spec §5) but stateless itself, so one Executor value may be reused
// or shared across goroutines driving different runs.
type Executor struct {
	Output observe.Output
}

// New constructs an Executor. out may be nil (defaults to a no-op).
func New(out observe.Output) *Executor {
	if out == nil {
		out = observe.NoopOutput{}
	}
	return &Executor{Output: out}
}

// Execute drives compiled starting at its start node, or at the shared
// store's failed node if one is set (resume), until no successor exists.
func (ex *Executor) Execute(ctx context.Context, compiled *compiler.CompiledFlow, s *sharedstore.Store, params map[string]any, wf *ir.Workflow) Result {
	start := time.Now()

	current := compiled.StartNode
	if s.Execution.FailedNode != "" {
		current = s.Execution.FailedNode
	}

	nodeCount := 0
	lastAction := ir.DefaultAction

	for {
		select {
		case <-ctx.Done():
			return ex.cancelledResult(wf, s, current, nodeCount, start)
		default:
		}

		wrapped, ok := compiled.Nodes[current]
		if !ok {
			break
		}

		ex.Output.ShowNode(current, observe.NodeStatusStart, 0)
		res, err := wrapped.Run(ctx, s, params, compiled.Mode)
		if err != nil {
			return ex.finish(compiled, s, wf, "error:execution_failure", false, nodeCount, start)
		}
		nodeCount++
		lastAction = res.Action

		status := observe.NodeStatusCompleted
		if res.CacheHit {
			status = observe.NodeStatusCached
		} else if ir.IsErrorAction(res.Action) {
			status = observe.NodeStatusError
		}
		ex.Output.ShowNode(current, status, res.Duration)

		next, hasNext, err := compiled.Next(current, res.Action, s.Flatten())
		if err != nil {
			ex.Output.ShowProgress(err.Error(), true)
			break
		}
		if !hasNext {
			break
		}
		current = next
	}

	success := !ir.IsErrorAction(lastAction) && !s.NonRepairableError
	return ex.finish(compiled, s, wf, lastAction, success, nodeCount, start)
}

// cancelledResult implements spec §8 scenario S6: a run stopped by context
// cancellation is reported with an error that names cancellation
// explicitly, not a synthesized message derived from whatever the last
// completed node's action happened to be. It is marked non-repairable
// (nothing a repair candidate could change would un-cancel the run), so
// the orchestrator's runtime loop reports it directly instead of
// dispatching a Repair call.
func (ex *Executor) cancelledResult(wf *ir.Workflow, s *sharedstore.Store, nextNodeID string, nodeCount int, start time.Time) Result {
	s.MarkNonRepairable()

	nodeType := ""
	if n, ok := wf.NodeByID(nextNodeID); ok {
		nodeType = n.Type
	}

	return Result{
		Success: false,
		Action:  "error:cancelled",
		Errors: []errextract.Record{{
			Source:   "runtime",
			NodeID:   nextNodeID,
			NodeType: nodeType,
			Action:   "error:cancelled",
			Category: errextract.CategoryCancelled,
			Message:  "execution cancelled before node " + nextNodeID + " completed",
			Fixable:  false,
		}},
		OutputData: map[string]any{},
		NodeCount:  nodeCount,
		Duration:   time.Since(start),
	}
}

func (ex *Executor) finish(compiled *compiler.CompiledFlow, s *sharedstore.Store, wf *ir.Workflow, lastAction string, success bool, nodeCount int, start time.Time) Result {
	var errs []errextract.Record
	if !success {
		errs = []errextract.Record{errextract.Extract(wf, s, lastAction, 0)}
	}

	outputData := map[string]any{}
	if success {
		outputData = ex.evaluateOutputs(compiled, s)
	}

	return Result{
		Success:    success,
		Action:     lastAction,
		Errors:     errs,
		OutputData: outputData,
		NodeCount:  nodeCount,
		Duration:   time.Since(start),
	}
}

// evaluateOutputs resolves outputs[*].source templates against the final
// shared store (spec §4.F: strict unless the IR declares permissive).
func (ex *Executor) evaluateOutputs(compiled *compiler.CompiledFlow, s *sharedstore.Store) map[string]any {
	out := make(map[string]any, len(compiled.Outputs))
	resolverCtx := tmpl.NewContext(nil, s.Flatten(), s.Inputs())
	for name, spec := range compiled.Outputs {
		v, degraded, err := tmpl.Resolve(spec.Source, resolverCtx, compiled.Mode)
		if err != nil {
			continue
		}
		if degraded {
			s.SetWarning("__outputs__."+name, "unresolved output source")
		}
		out[name] = v
	}
	return out
}
