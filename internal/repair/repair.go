// Package repair defines the Repair Client contract (spec §4.H): given a
// failing IR plus error context, produce a repaired IR candidate. The core
// never talks to an LLM transport directly — it only depends on this
// interface, exactly as the teacher keeps node execution behind
// NodeExecutor and the planner's LLM calls behind a thin client.
package repair

import (
	"context"

	"github.com/smilemakc/pflow/internal/errextract"
	"github.com/smilemakc/pflow/internal/ir"
)

// Result is what a repair attempt returns (spec §4.H).
type Result struct {
	CandidateIR     *ir.Workflow
	ModifiedNodeIDs []string
	Rationale       string
}

// IsEmptyChange reports whether this result changed nothing — the
// orchestrator's abort condition (spec §4.H: "A repair that changes
// nothing MUST be reported as an empty-change result").
func (r Result) IsEmptyChange() bool {
	return len(r.ModifiedNodeIDs) == 0
}

// Client is the Repair Client contract.
type Client interface {
	Repair(ctx context.Context, wf *ir.Workflow, errs []errextract.Record, sharedExcerpt map[string]any, params map[string]any, cacheHints any) (Result, error)
}
