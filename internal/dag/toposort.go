// Package dag implements Kahn's algorithm over the non-error edges of a
// workflow, grounded on the teacher's WorkflowGraph.TopologicalSort
// (internal/application/executor/graph.go), generalized from the teacher's
// string NodeConfig/EdgeConfig pairs to ir.Node/ir.Edge. Used by both the
// Validator's dataflow layer (spec §4.C.2) and the Repair Orchestrator's
// descendant invalidation (spec §4.G).
package dag

import (
	"fmt"
	"sort"

	"github.com/smilemakc/pflow/internal/ir"
)

// CycleError reports a cycle found among non-error edges (spec §4.C.2).
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected among nodes: %v", e.Cycle)
}

// Order computes a topological order of wf's node ids using Kahn's
// algorithm over non-error edges only (error-action edges may legitimately
// cycle — spec §3: "error-action edges may cycle (explicit retry loops)").
// Ties are broken by node id for determinism.
func Order(wf *ir.Workflow) ([]string, error) {
	forward := map[string][]string{}
	inDegree := map[string]int{}

	for _, n := range wf.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range wf.Edges {
		if ir.IsErrorAction(e.ActionOf()) {
			continue
		}
		forward[e.From] = append(forward[e.From], e.To)
		inDegree[e.To]++
	}

	var queue []string
	for _, n := range wf.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		sort.Strings(queue)
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := append([]string(nil), forward[id]...)
		sort.Strings(next)
		for _, m := range next {
			inDegree[m]--
			if inDegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	if len(order) != len(wf.Nodes) {
		return nil, &CycleError{Cycle: remaining(wf, order)}
	}
	return order, nil
}

// remaining returns the node ids never emitted by Kahn's algorithm — the
// members of the cycle (or unreachable from it).
func remaining(wf *ir.Workflow, order []string) []string {
	emitted := make(map[string]bool, len(order))
	for _, id := range order {
		emitted[id] = true
	}
	var left []string
	for _, n := range wf.Nodes {
		if !emitted[n.ID] {
			left = append(left, n.ID)
		}
	}
	sort.Strings(left)
	return left
}

// Precedes reports whether a comes strictly before b in order. Used by the
// Validator's template layer (spec §4.C.3) to check a referenced node
// precedes its referencer.
func Precedes(order []string, a, b string) bool {
	ai, aok := indexOf(order, a)
	bi, bok := indexOf(order, b)
	if !aok || !bok {
		return false
	}
	return ai < bi
}

func indexOf(order []string, id string) (int, bool) {
	for i, v := range order {
		if v == id {
			return i, true
		}
	}
	return 0, false
}
