// Package pflow is the public facade over the declarative workflow engine:
// an IR, a registry of node types, a validator, a compiler, an executor,
// and a repair orchestrator that ties them together (spec §4.L).
//
// Most callers only need NewEngine and Engine.ExecuteWorkflow; the
// internal packages remain reachable for callers assembling a custom
// Registry, Output, Trace, Metrics, or Repair Client.
package pflow

import (
	"context"
	"fmt"
	"time"

	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/observe"
	"github.com/smilemakc/pflow/internal/orchestrator"
	"github.com/smilemakc/pflow/internal/registry"
	"github.com/smilemakc/pflow/internal/repair"
	"github.com/smilemakc/pflow/internal/sharedstore"
	"github.com/smilemakc/pflow/internal/validate"
	"github.com/smilemakc/pflow/internal/workflowmgr"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Workflow IR types (spec §3), re-exported so callers can construct or
// parse a workflow without importing internal/ir directly.
type (
	Workflow     = ir.Workflow
	Node         = ir.Node
	Edge         = ir.Edge
	InputSpec    = ir.InputSpec
	OutputSpec   = ir.OutputSpec
	InputType    = ir.InputType
	TemplateMode = ir.TemplateMode
)

// Template resolution modes (spec §4.B).
const (
	ModeStrict     = ir.ModeStrict
	ModePermissive = ir.ModePermissive
)

// ParseWorkflow decodes a JSON-encoded workflow IR.
func ParseWorkflow(data []byte) (*Workflow, error) { return ir.Parse(data) }

// ParseWorkflowYAML decodes a YAML-authored workflow IR.
func ParseWorkflowYAML(data []byte) (*Workflow, error) { return ir.ParseYAML(data) }

// Registry types (spec §4.A) node authors implement against.
type (
	Registry      = registry.Registry
	RegistryNode  = registry.Node
	FieldSpec     = registry.FieldSpec
	NodeFactory   = registry.Factory
	SearchResult  = registry.SearchResult
)

// NewRegistry returns an empty node-type Registry.
func NewRegistry() *Registry { return registry.New() }

// Observer hooks (spec §6).
type (
	Output  = observe.Output
	Trace   = observe.Trace
	Metrics = observe.Metrics
)

// TracerProvider and TracerProviderConfig expose an in-process OTel SDK
// tracer provider for callers that don't already run one, for use with
// NewOTelTrace.
type (
	TracerProvider       = observe.Provider
	TracerProviderConfig = observe.TracerProviderConfig
)

// NewTracerProvider builds a TracerProvider from cfg.
func NewTracerProvider(cfg TracerProviderConfig) *TracerProvider {
	return observe.NewTracerProvider(cfg)
}

// NewOTelTrace builds a Trace implementation backed by tracer (e.g.
// provider.Tracer("pflow")).
func NewOTelTrace(ctx context.Context, tracer oteltrace.Tracer) *observe.OTelTrace {
	return observe.NewOTelTrace(ctx, tracer)
}

// Repair Client contract and result shape (spec §4.H).
type (
	RepairClient = repair.Client
	RepairResult = repair.Result
)

// Workflow Manager (spec §4.J).
type (
	WorkflowManager     = workflowmgr.Manager
	BlobStore           = workflowmgr.BlobStore
	WorkflowMetadata    = workflowmgr.Metadata
	WorkflowMetaPatch   = workflowmgr.MetadataPatch
	WorkflowEntry       = workflowmgr.Entry
	WorkflowSummary     = workflowmgr.Summary
)

// NewWorkflowManager wraps store (a FileStore, a PGStore, or any other
// BlobStore implementation) in a Manager.
func NewWorkflowManager(store BlobStore) *WorkflowManager { return workflowmgr.New(store) }

// SharedStore is the per-run state callers may retain across calls to
// resume a failed execution (spec §3).
type SharedStore = sharedstore.Store

// ExecutionResult is what ExecuteWorkflow returns (spec §4.I/§4.L).
type ExecutionResult = orchestrator.ExecutionResult

// Validate runs the IR Validator (spec §4.C) standalone, without executing
// anything. reg may be nil to skip the node-type layer.
func Validate(wf *Workflow, params map[string]any, reg *Registry) []string {
	return validate.Validate(wf, params, reg, false)
}

// Engine is the top-level entry point: a Registry plus optional
// collaborators (Repair Client, observer hooks, Workflow Manager) wired
// into a Repair Orchestrator. One Engine may serve many concurrent runs
// (spec §5: the Registry and Repair Client must be safe for concurrent
// reads; per-run state lives in the caller-owned SharedStore).
type Engine struct {
	orch *orchestrator.Orchestrator
	wm   *WorkflowManager
}

// EngineConfig bundles an Engine's collaborators. Registry is required;
// every other field is optional and defaults to a no-op (RepairClient nil
// behaves as if enable_repair were always false, regardless of what the
// caller passes to ExecuteWorkflow).
type EngineConfig struct {
	Registry        *Registry
	RepairClient    RepairClient
	Output          Output
	Trace           Trace
	Metrics         Metrics
	WorkflowManager *WorkflowManager
}

// NewEngine constructs an Engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		orch: orchestrator.New(cfg.Registry, cfg.RepairClient, cfg.Output, cfg.Trace, cfg.Metrics),
		wm:   cfg.WorkflowManager,
	}
}

// ExecuteOptions carries the per-call knobs of ExecuteWorkflow's signature
// (spec §4.L) that don't belong on EngineConfig.
type ExecuteOptions struct {
	EnableRepair bool
	ResumeState  *SharedStore

	// WorkflowName, when non-empty and the Engine has a WorkflowManager,
	// causes ExecuteWorkflow to update that name's execution metadata (and
	// its stored IR, if a repair was applied) after the run completes.
	WorkflowName         string
	SkipWorkflowIRUpdate bool

	// StdinData/HasStdinData implement spec §4.L's stdin routing: when
	// HasStdinData is true, StdinData is assigned to the workflow's sole
	// stdin:true input unless the caller already supplied a value for it.
	StdinData    string
	HasStdinData bool
}

// ErrNoStdinInput is returned when StdinData is given but no declared
// input carries stdin:true (spec §4.L: "error with clear structured
// message if no input declares stdin:true").
var ErrNoStdinInput = fmt.Errorf("pflow: stdin data supplied but no input declares stdin:true")

// ExecuteWorkflow is the public facade of spec §4.L: it resolves stdin
// routing, delegates to the Repair Orchestrator, and — when a Workflow
// Manager and name are configured — records the outcome.
func (e *Engine) ExecuteWorkflow(ctx context.Context, wf *Workflow, params map[string]any, opts ExecuteOptions) (ExecutionResult, error) {
	if opts.HasStdinData {
		name, ok := wf.StdinInput()
		if !ok {
			return ExecutionResult{}, ErrNoStdinInput
		}
		if params == nil {
			params = map[string]any{}
		}
		if _, provided := params[name]; !provided {
			params[name] = opts.StdinData
		}
	}

	result := e.orch.ExecuteWorkflow(ctx, wf, params, opts.EnableRepair, opts.ResumeState)

	if e.wm != nil && opts.WorkflowName != "" {
		e.recordOutcome(ctx, opts.WorkflowName, result, opts.SkipWorkflowIRUpdate)
	}

	return result, nil
}

// recordOutcome implements spec §4.L's post-run bookkeeping. Manager
// errors are reported through the Engine's Output hook rather than failing
// the run: the workflow already executed, a bookkeeping failure shouldn't
// unwind a successful result.
func (e *Engine) recordOutcome(ctx context.Context, name string, result ExecutionResult, skipIRUpdate bool) {
	now := time.Now()
	ok := result.Success
	note := result.ActionResult

	patch := workflowmgr.MetadataPatch{
		IncrementExecutionCount: true,
		LastExecutionAt:         &now,
		LastExecutionOK:         &ok,
		LastExecutionNote:       &note,
	}
	if err := e.wm.UpdateMetadata(ctx, name, patch); err != nil {
		e.orch.Output.ShowProgress(fmt.Sprintf("workflow manager: updating metadata for %q: %v", name, err), true)
	}

	if result.Success && result.RepairedWorkflowIR != nil && !skipIRUpdate {
		if err := e.wm.UpdateIR(ctx, name, result.RepairedWorkflowIR); err != nil {
			e.orch.Output.ShowProgress(fmt.Sprintf("workflow manager: updating ir for %q: %v", name, err), true)
		}
	}
}
