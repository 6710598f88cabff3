// Package wrapper implements the Instrumented Node Wrapper (spec §4.E):
// the sole place the checkpoint is written while a run executes (the
// orchestrator only invalidates entries between attempts), sitting between
// the Executor Service and a raw registry.Node.
package wrapper

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/observe"
	"github.com/smilemakc/pflow/internal/registry"
	"github.com/smilemakc/pflow/internal/sharedstore"
	"github.com/smilemakc/pflow/internal/tmpl"
	"github.com/smilemakc/pflow/internal/value"
)

// nonRepairableStatuses are HTTP-ish status codes the wrapper treats as
// futile to repair (spec §4.E step 4: "auth 401/403, 404, rate-limit 429,
// business-logic 4xx without structured validation detail").
var nonRepairableStatuses = map[int]bool{401: true, 403: true, 404: true, 429: true}

// Wrapped pairs a raw node with its IR declaration and wraps Run around the
// seven-step pipeline of spec §4.E.
type Wrapped struct {
	Node   registry.Node
	NodeID string
	Type   string
	Params map[string]any

	Trace observe.Trace
}

// New constructs a Wrapped instance for one compiled node.
func New(n registry.Node, nodeIR ir.Node, trace observe.Trace) *Wrapped {
	if trace == nil {
		trace = observe.NoopTrace{}
	}
	return &Wrapped{Node: n, NodeID: nodeIR.ID, Type: nodeIR.Type, Params: nodeIR.Params, Trace: trace}
}

// Result is what Run hands back to the Executor Service: the action string
// used to look up the next edge, plus whether this was a cache hit (purely
// informational — the checkpoint is already updated either way).
type Result struct {
	Outputs  map[string]any
	Action   string
	CacheHit bool
	Degraded bool // a permissive-mode template substitution occurred
	Duration time.Duration
}

// Run executes the seven-step pipeline against store s using params as the
// resolver context's explicit-params tier, and mode as the workflow's
// template resolution mode.
func (w *Wrapped) Run(ctx context.Context, s *sharedstore.Store, params map[string]any, mode ir.TemplateMode) (Result, error) {
	start := time.Now()

	resolverCtx := tmpl.NewContext(params, s.Flatten(), s.Inputs())

	// Step 1: cache check. Hash the resolved params the same way on every
	// call so a cache hit and its original write agree (spec §4.E
	// step 1: hash(serialize(resolved_params(n, ctx)))).
	resolvedForHash, degraded, resolveErr := tmpl.Resolve(w.Params, resolverCtx, mode)
	if resolveErr == nil {
		hash := value.MustHash(resolvedForHash)
		if s.Execution.IsCompleted(w.NodeID) &&
			s.Execution.NodeHashes[w.NodeID] == hash &&
			!ir.IsErrorAction(s.Execution.NodeActions[w.NodeID]) {
			s.RecordCacheHit(w.NodeID)
			outputs, _ := s.NodeOutput(w.NodeID)
			return Result{
				Outputs:  outputs,
				Action:   s.Execution.NodeActions[w.NodeID],
				CacheHit: true,
				Degraded: degraded,
				Duration: time.Since(start),
			}, nil
		}
	}

	// Step 2: template resolution (already computed above for the hash; a
	// strict-mode failure is synthesized as a template error here).
	resolvedParams := resolvedForHash
	var outputs map[string]any
	var action string

	if resolveErr != nil {
		outputs = map[string]any{"error": resolveErr.Error()}
		action = "error:template_error"
	} else {
		// Step 3: execute.
		outputs, action = w.exec(ctx, resolvedParams, s)

		// Step 4: warning / non-repairable detection.
		w.detectAPIWarning(s, outputs)
	}

	// Step 5: store outputs (namespaced; legacy keys promoted by the store).
	s.SetNodeOutput(w.NodeID, outputs)

	// Step 6: checkpoint update.
	hash, _ := value.Hash(resolvedParams)
	s.Execution.MarkCompleted(w.NodeID, hash, action, ir.IsErrorAction(action))

	duration := time.Since(start)
	w.Trace.RecordNode(w.NodeID, resolvedParams, outputs, duration)

	return Result{
		Outputs:  outputs,
		Action:   action,
		CacheHit: false,
		Degraded: degraded,
		Duration: duration,
	}, nil
}

// exec calls the underlying node, converting a panic into the synthesized
// execution_failure outcome spec §4.E step 3 describes for an "unhandled
// exception" (Go's nearest equivalent to the spec's try/catch language).
func (w *Wrapped) exec(ctx context.Context, resolvedParams map[string]any, s *sharedstore.Store) (outputs map[string]any, action string) {
	defer func() {
		if r := recover(); r != nil {
			outputs = map[string]any{"error": panicMessage(r)}
			action = "error:execution_failure"
		}
	}()

	execCtx := s.Flatten()
	out, act, err := w.Node.Exec(ctx, resolvedParams, execCtx)
	if err != nil {
		merged := map[string]any{"error": err.Error()}
		for k, v := range out {
			merged[k] = v
		}
		return merged, "error:execution_failure"
	}
	if act == "" {
		act = ir.DefaultAction
	}
	return out, act
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("panic: %v", r)
}

// detectAPIWarning implements spec §4.E step 4: external-call outputs
// carrying an API-level failure signal are recorded as a warning, and
// certain statuses are additionally marked non-repairable.
func (w *Wrapped) detectAPIWarning(s *sharedstore.Store, outputs map[string]any) {
	if ok, present := boolField(outputs, "ok"); present && !ok {
		s.SetWarning(w.NodeID, "ok:false")
	}
	if success, present := boolField(outputs, "success"); present && !success {
		s.SetWarning(w.NodeID, "success:false")
	}
	if errs, ok := outputs["errors"]; ok {
		if list, ok := errs.([]any); ok && len(list) > 0 {
			s.SetWarning(w.NodeID, "errors present")
		}
	}

	status, hasStatus := intField(outputs, "status")
	if !hasStatus {
		status, hasStatus = intField(outputs, "status_code")
	}
	if hasStatus && status >= 400 {
		s.SetWarning(w.NodeID, "http status "+strconv.Itoa(status))
		if nonRepairableStatuses[status] {
			s.MarkNonRepairable()
		} else if status >= 400 && status < 500 && !hasStructuredValidationDetail(outputs) {
			s.MarkNonRepairable()
		}
	}
}

// hasStructuredValidationDetail reports whether outputs carries the
// structured detail spec §3's Error Record names for an API validation
// failure (raw_response, optionally alongside response_headers) — a
// present, non-empty raw_response is what distinguishes a repairable
// api_validation error from an opaque 4xx with nothing to repair against.
func hasStructuredValidationDetail(outputs map[string]any) bool {
	raw, ok := outputs["raw_response"]
	if !ok || raw == nil {
		return false
	}
	if s, isString := raw.(string); isString {
		return s != ""
	}
	return true
}

func boolField(m map[string]any, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func intField(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

