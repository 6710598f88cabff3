// Package orchestrator implements the Repair Orchestrator (spec §4.I): a
// bounded two-phase loop that validates and repairs a workflow's IR before
// execution, then executes it, repairing and resuming across failures
// until success, exhaustion, or a detected repair loop.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/smilemakc/pflow/internal/compiler"
	"github.com/smilemakc/pflow/internal/dag"
	"github.com/smilemakc/pflow/internal/errextract"
	"github.com/smilemakc/pflow/internal/execengine"
	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/observe"
	"github.com/smilemakc/pflow/internal/registry"
	"github.com/smilemakc/pflow/internal/repair"
	"github.com/smilemakc/pflow/internal/sharedstore"
	"github.com/smilemakc/pflow/internal/validate"
)

// Bounds on the three nested loops (spec §4.I).
const (
	MaxValidationAttempts = 3
	MaxRuntimeLoops       = 3
	MaxInnerRepairs       = 3
)

// ExecutionResult is the orchestrator's (and public facade's) return value
// (spec §3: "{success, shared_after, errors[], action_result, node_count,
// duration, output_data, metrics_summary, repaired_workflow_ir?}").
type ExecutionResult struct {
	Success            bool
	SharedAfter        *sharedstore.Store
	Errors             []errextract.Record
	ActionResult       string
	NodeCount          int
	Duration           time.Duration
	OutputData         map[string]any
	MetricsSummary     observe.MetricsSummary
	RepairedWorkflowIR *ir.Workflow
}

// Orchestrator wires the Validator, Compiler, Executor, and Repair Client
// together. Registry must be non-nil: the Compiler looks every node type up
// in it. A nil Repair leaves repair unavailable even when the caller asks
// for it.
type Orchestrator struct {
	Registry *registry.Registry
	Repair   repair.Client
	Output   observe.Output
	Trace    observe.Trace
	Metrics  observe.Metrics
}

// New constructs an Orchestrator. out/trace/metrics may be nil (default to
// no-ops); repairClient may be nil (repair requests then fail immediately,
// same as enable_repair=false).
func New(reg *registry.Registry, repairClient repair.Client, out observe.Output, trace observe.Trace, metrics observe.Metrics) *Orchestrator {
	if out == nil {
		out = observe.NoopOutput{}
	}
	if trace == nil {
		trace = observe.NoopTrace{}
	}
	if metrics == nil {
		metrics = observe.NoopMetrics{}
	}
	return &Orchestrator{Registry: reg, Repair: repairClient, Output: out, Trace: trace, Metrics: metrics}
}

// ExecuteWorkflow runs the full two-phase loop (spec §4.I entry point).
// resumeState, if non-nil, seeds Phase 2's shared store (resume after a
// prior failed attempt); it is never mutated — a clone is taken.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, wf *ir.Workflow, params map[string]any, enableRepair bool, resumeState *sharedstore.Store) ExecutionResult {
	wf = wf.Clone()

	wf, errorsV, ok := o.validationPhase(ctx, wf, params, enableRepair)
	if !ok {
		return o.staticFailure(errorsV)
	}

	return o.runtimePhase(ctx, wf, params, enableRepair, resumeState)
}

// validationPhase is Phase 1 (spec §4.I): repeatedly validate, and on
// failure ask the repair client for a fix, until the IR validates clean,
// the attempt budget is exhausted, or repair stalls.
func (o *Orchestrator) validationPhase(ctx context.Context, wf *ir.Workflow, params map[string]any, enableRepair bool) (*ir.Workflow, []string, bool) {
	var errorsV []string

	for attempt := 0; attempt < MaxValidationAttempts; attempt++ {
		errorsV = o.validate(wf, params)
		if len(errorsV) == 0 {
			return wf, nil, true
		}
		if !enableRepair || o.Repair == nil {
			return wf, errorsV, false
		}

		o.Output.ShowProgress(fmt.Sprintf("validation failed, requesting repair (attempt %d/%d)", attempt+1, MaxValidationAttempts), false)

		rep, err := o.Repair.Repair(ctx, wf, toStaticRecords(errorsV), map[string]any{}, params, nil)
		if err != nil {
			return wf, append(errorsV, err.Error()), false
		}
		if rep.IsEmptyChange() {
			return wf, errorsV, false
		}
		wf = rep.CandidateIR
	}

	return wf, errorsV, false
}

// runtimePhase is Phase 2 (spec §4.I): execute, and on a repairable
// failure, ask the repair client for a fix, re-validate the candidate, and
// resume — bounded by MaxRuntimeLoops outer attempts and, per outer
// attempt, MaxInnerRepairs validation-of-candidate attempts.
func (o *Orchestrator) runtimePhase(ctx context.Context, wf *ir.Workflow, params map[string]any, enableRepair bool, resumeState *sharedstore.Store) ExecutionResult {
	shared := sharedstore.New()
	if resumeState != nil {
		shared = resumeState.Clone()
	}
	shared.SetInputs(effectiveInputs(wf, params))

	exec := execengine.New(o.Output)
	var seenSignatures []string
	var result execengine.Result
	var repaired *ir.Workflow

	for outer := 0; outer < MaxRuntimeLoops; outer++ {
		compiled, err := compiler.Compile(wf, o.Registry, o.Trace)
		if err != nil {
			return o.runtimeFailure(shared, []errextract.Record{{Source: "static", Category: errextract.CategoryStatic, Message: err.Error(), Fixable: false}}, result)
		}

		result = exec.Execute(ctx, compiled, shared, params, wf)
		if result.Success {
			if outer > 0 {
				repaired = wf
			}
			return o.successResult(shared, result, repaired)
		}
		if shared.NonRepairableError {
			return o.runtimeFailure(shared, result.Errors, result)
		}
		if !enableRepair || o.Repair == nil {
			return o.runtimeFailure(shared, result.Errors, result)
		}
		if len(result.Errors) == 0 {
			return o.runtimeFailure(shared, result.Errors, result)
		}

		sig := errorSignature(result.Errors[0])
		if containsString(seenSignatures, sig) {
			o.Output.ShowProgress("repeated error signature, aborting repair loop", true)
			return o.runtimeFailure(shared, result.Errors, result)
		}
		seenSignatures = append(seenSignatures, sig)

		candidate, modified, ok := o.repairRuntimeFailure(ctx, wf, shared, result, params)
		if !ok {
			return o.runtimeFailure(shared, result.Errors, result)
		}

		order, _ := dag.Order(candidate)
		invalidateDescendants(&shared.Execution, modified, order)
		shared.AddModifiedNodes(modified)
		wf = candidate
	}

	return o.runtimeFailure(shared, result.Errors, result)
}

// repairRuntimeFailure drives the inner validation-of-candidate sub-loop:
// ask for a repair, validate the candidate IR, and if it still doesn't
// validate, retry the repair (feeding the static errors back in) up to
// MaxInnerRepairs times.
func (o *Orchestrator) repairRuntimeFailure(ctx context.Context, wf *ir.Workflow, shared *sharedstore.Store, result execengine.Result, params map[string]any) (*ir.Workflow, []string, bool) {
	errsForRepair := result.Errors
	excerpt := sharedExcerpt(wf, shared, result.Errors[0].NodeID)
	cacheHints, _ := params["__planner_cache_chunks__"]

	for inner := 0; inner < MaxInnerRepairs; inner++ {
		rep, err := o.Repair.Repair(ctx, wf, errsForRepair, excerpt, params, cacheHints)
		if err != nil {
			return nil, nil, false
		}
		if rep.IsEmptyChange() {
			return nil, nil, false
		}

		errorsV := o.validate(rep.CandidateIR, params)
		if len(errorsV) == 0 {
			return rep.CandidateIR, rep.ModifiedNodeIDs, true
		}
		errsForRepair = append(append([]errextract.Record(nil), result.Errors...), toStaticRecords(errorsV)...)
	}

	return nil, nil, false
}

// effectiveInputs merges wf's declared input defaults with the caller's
// params (spec §3/§4.B: a declared input's default populates the shared
// store's inputs tier whenever the caller didn't supply that name
// explicitly), so a `${name}` template reference resolves the same way
// the Validator's schema layer already assumes it will.
func effectiveInputs(wf *ir.Workflow, params map[string]any) map[string]any {
	out := make(map[string]any, len(wf.Inputs))
	for name, spec := range wf.Inputs {
		if v, ok := params[name]; ok {
			out[name] = v
			continue
		}
		if spec.Default != nil {
			out[name] = spec.Default
		}
	}
	return out
}

// validate runs the Validator with node-type checks enabled, since the
// orchestrator always has a concrete registry to check against.
func (o *Orchestrator) validate(wf *ir.Workflow, params map[string]any) []string {
	return validate.Validate(wf, params, o.Registry, false)
}

func (o *Orchestrator) staticFailure(errorsV []string) ExecutionResult {
	return ExecutionResult{
		Success:        false,
		SharedAfter:    sharedstore.New(),
		Errors:         toStaticRecords(errorsV),
		ActionResult:   "error:static_validation",
		MetricsSummary: o.Metrics.Summary(),
	}
}

func (o *Orchestrator) runtimeFailure(shared *sharedstore.Store, errs []errextract.Record, result execengine.Result) ExecutionResult {
	return ExecutionResult{
		Success:        false,
		SharedAfter:    shared,
		Errors:         errs,
		ActionResult:   result.Action,
		NodeCount:      result.NodeCount,
		Duration:       result.Duration,
		OutputData:     result.OutputData,
		MetricsSummary: o.Metrics.Summary(),
	}
}

func (o *Orchestrator) successResult(shared *sharedstore.Store, result execengine.Result, repaired *ir.Workflow) ExecutionResult {
	return ExecutionResult{
		Success:            true,
		SharedAfter:        shared,
		ActionResult:       result.Action,
		NodeCount:          result.NodeCount,
		Duration:           result.Duration,
		OutputData:         result.OutputData,
		MetricsSummary:     o.Metrics.Summary(),
		RepairedWorkflowIR: repaired,
	}
}

// toStaticRecords wraps Validate()'s error strings into errextract.Records
// so the static and runtime repair paths share one Repair() call shape.
func toStaticRecords(errorsV []string) []errextract.Record {
	recs := make([]errextract.Record, 0, len(errorsV))
	for _, e := range errorsV {
		recs = append(recs, errextract.FromStatic(e))
	}
	return recs
}

// invalidateDescendants implements spec §4.G: every modified node, and
// every node that comes after it in order, is dropped from the checkpoint
// so the executor re-runs it; failed_node becomes the earliest invalidated
// id that is itself a modified node.
func invalidateDescendants(cp *sharedstore.Checkpoint, modified []string, order []string) {
	modSet := make(map[string]bool, len(modified))
	for _, m := range modified {
		modSet[m] = true
	}

	invalidated := make(map[string]bool)
	for _, m := range modified {
		cp.Invalidate(m)
		invalidated[m] = true
	}
	for _, m := range modified {
		for _, k := range order {
			if dag.Precedes(order, m, k) {
				cp.Invalidate(k)
				invalidated[k] = true
			}
		}
	}

	for _, id := range order {
		if modSet[id] {
			cp.FailedNode = id
			return
		}
	}
	for _, id := range order {
		if invalidated[id] {
			cp.FailedNode = id
			return
		}
	}
}

// sharedExcerpt is a compact projection of the shared store keyed to the
// failed node and its immediate upstream nodes (spec §4.H).
func sharedExcerpt(wf *ir.Workflow, s *sharedstore.Store, nodeID string) map[string]any {
	excerpt := map[string]any{}
	if out, ok := s.NodeOutput(nodeID); ok {
		excerpt[nodeID] = out
	}
	for _, e := range wf.Edges {
		if e.To != nodeID {
			continue
		}
		if out, ok := s.NodeOutput(e.From); ok {
			excerpt[e.From] = out
		}
	}
	if inputs := s.Inputs(); len(inputs) > 0 {
		excerpt["__inputs__"] = inputs
	}
	return excerpt
}

var (
	reTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T[0-9:.+Z-]*`)
	reUUID      = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reDuration  = regexp.MustCompile(`\d+(\.\d+)?(ms|s|m|h)\b`)
	reNumber    = regexp.MustCompile(`\d+(\.\d+)?`)
)

// errorSignature normalizes errs[0].message so that repairs retrying the
// same class of failure (differing only in a timestamp, a duration, a
// generated id, or a changed count) are recognized as the same signature
// (spec §4.I "Error signature").
func errorSignature(rec errextract.Record) string {
	msg := rec.Message
	msg = reTimestamp.ReplaceAllString(msg, "<ts>")
	msg = reUUID.ReplaceAllString(msg, "<uuid>")
	msg = reDuration.ReplaceAllString(msg, "<dur>")
	msg = reNumber.ReplaceAllString(msg, "<num>")
	return fmt.Sprintf("(%s,%s):%s", rec.Category, rec.NodeID, msg)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
