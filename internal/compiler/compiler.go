// Package compiler turns a validated ir.Workflow into a CompiledFlow: a
// wiring map plus instantiated, wrapped nodes (spec §4.D).
package compiler

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"

	"github.com/smilemakc/pflow/internal/ir"
	"github.com/smilemakc/pflow/internal/observe"
	"github.com/smilemakc/pflow/internal/registry"
	"github.com/smilemakc/pflow/internal/wrapper"
)

// WireKey is the (from_id, action) pair the wiring map is keyed on.
type WireKey struct {
	From   string
	Action string
}

// candidate is one edge target sharing a WireKey, kept in IR declaration
// order so the first one without a When guard (or the first one whose
// guard passes) wins (SPEC_FULL §2.1: edge guards disambiguate fan-out
// edges sharing the same (from, action) routing key).
type candidate struct {
	To   string
	When string
}

// CompiledFlow is the runnable form of a workflow (spec §4.D).
type CompiledFlow struct {
	Nodes     map[string]*wrapper.Wrapped
	StartNode string
	Wiring    map[WireKey][]candidate
	Inputs    map[string]ir.InputSpec
	Outputs   map[string]ir.OutputSpec
	Mode      ir.TemplateMode
}

// Compile instantiates every node through reg and builds the wiring map.
// Validation (spec §4.C) is expected to have already run; Compile still
// enforces id-uniqueness, start_node existence, and known node types so it
// fails fast when validation was skipped (spec §4.D).
func Compile(wf *ir.Workflow, reg *registry.Registry, trace observe.Trace) (*CompiledFlow, error) {
	seen := make(map[string]bool, len(wf.Nodes))
	nodes := make(map[string]*wrapper.Wrapped, len(wf.Nodes))

	for _, n := range wf.Nodes {
		if seen[n.ID] {
			return nil, fmt.Errorf("compiler: duplicate node id %q", n.ID)
		}
		seen[n.ID] = true

		raw, ok := reg.Get(n.Type)
		if !ok {
			return nil, fmt.Errorf("compiler: unknown node type %q for node %q", n.Type, n.ID)
		}
		nodes[n.ID] = wrapper.New(raw, n, trace)
	}

	start := wf.EffectiveStartNode()
	if start == "" {
		return nil, fmt.Errorf("compiler: workflow has no start node")
	}
	if _, ok := nodes[start]; !ok {
		return nil, fmt.Errorf("compiler: start_node %q does not name a known node", start)
	}

	wiring := make(map[WireKey][]candidate)
	for _, e := range wf.Edges {
		if _, ok := nodes[e.From]; !ok {
			return nil, fmt.Errorf("compiler: edge references unknown source node %q", e.From)
		}
		if _, ok := nodes[e.To]; !ok {
			return nil, fmt.Errorf("compiler: edge references unknown target node %q", e.To)
		}
		key := WireKey{From: e.From, Action: e.ActionOf()}
		wiring[key] = append(wiring[key], candidate{To: e.To, When: e.When})
	}

	return &CompiledFlow{
		Nodes:     nodes,
		StartNode: start,
		Wiring:    wiring,
		Inputs:    wf.Inputs,
		Outputs:   wf.Outputs,
		Mode:      wf.Mode(),
	}, nil
}

// Next resolves the successor of (fromID, action) against env (the
// resolved shared-store view an edge guard may reference), evaluating
// candidate When guards in declaration order and taking the first match;
// an edge with no When always matches. Returns ok=false when no edge is
// wired for this (from, action) pair (spec §4.F: "terminate when no
// successor exists").
func (c *CompiledFlow) Next(fromID, action string, env map[string]any) (string, bool, error) {
	candidates, ok := c.Wiring[WireKey{From: fromID, Action: action}]
	if !ok {
		return "", false, nil
	}
	for _, cand := range candidates {
		if cand.When == "" {
			return cand.To, true, nil
		}
		matched, err := evalGuard(cand.When, env)
		if err != nil {
			return "", false, fmt.Errorf("compiler: edge guard %q from %q: %w", cand.When, fromID, err)
		}
		if matched {
			return cand.To, true, nil
		}
	}
	return "", false, nil
}

func evalGuard(when string, env map[string]any) (bool, error) {
	out, err := expr.Eval(when, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("guard did not evaluate to a boolean, got %T", out)
	}
	return b, nil
}

// NodeIDs returns every compiled node id, sorted, useful for descendant
// invalidation bookkeeping in the orchestrator.
func (c *CompiledFlow) NodeIDs() []string {
	ids := make([]string, 0, len(c.Nodes))
	for id := range c.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
