// Package sharedstore implements the per-run shared store: the single
// mutable structure that carries node outputs, declared inputs, and system
// state across one workflow attempt (spec §3).
package sharedstore

import (
	"sync"

	"github.com/google/uuid"
)

// legacyKeys are the output keys the Instrumented Node Wrapper promotes to
// the store's root for backward-compatible template references (spec
// §4.E step 5: "surface any whitelisted top-level keys... to the root").
var legacyKeys = []string{"response", "result"}

// Store is the per-run shared store. It is owned exclusively by one run
// (spec §5) and is the sole place checkpoint state lives.
type Store struct {
	mu sync.Mutex

	nodes  map[string]map[string]any // node_id -> its output namespace
	inputs map[string]any            // declared workflow inputs, populated at run start
	root   map[string]any            // legacy whitelisted keys surfaced to the top level

	// RunID identifies this attempt for external correlation (logs,
	// traces, workflow manager metadata) — generated once per New, not
	// touched by Clone (a resumed attempt keeps its original RunID).
	RunID string

	Execution          Checkpoint
	CacheHits          []string
	Warnings           map[string]string
	NonRepairableError bool
	ModifiedNodes      []string
	LLMCalls           []any
}

// New creates an empty shared store for a fresh run.
func New() *Store {
	return &Store{
		nodes:     map[string]map[string]any{},
		inputs:    map[string]any{},
		root:      map[string]any{},
		RunID:     uuid.NewString(),
		Execution: NewCheckpoint(),
		Warnings:  map[string]string{},
	}
}

// SetInputs records the declared workflow inputs (with defaults already
// applied) at run start.
func (s *Store) SetInputs(inputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = inputs
}

// Inputs returns the declared workflow inputs.
func (s *Store) Inputs() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.inputs))
	for k, v := range s.inputs {
		out[k] = v
	}
	return out
}

// SetNodeOutput writes a node's namespaced outputs (spec §4.E step 5) and
// promotes any whitelisted key to the store root.
func (s *Store) SetNodeOutput(nodeID string, outputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[nodeID] = outputs
	for _, key := range legacyKeys {
		if v, ok := outputs[key]; ok {
			s.root[key] = v
		}
	}
}

// NodeOutput returns a node's stored outputs, if any.
func (s *Store) NodeOutput(nodeID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.nodes[nodeID]
	return v, ok
}

// RecordCacheHit appends nodeID to CacheHits (spec §4.E step 1).
func (s *Store) RecordCacheHit(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CacheHits = append(s.CacheHits, nodeID)
}

// SetWarning records a per-node warning (spec §4.E step 4).
func (s *Store) SetWarning(nodeID, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Warnings == nil {
		s.Warnings = map[string]string{}
	}
	s.Warnings[nodeID] = summary
}

// MarkNonRepairable sets the non-repairable flag (spec §4.E step 4, §7).
func (s *Store) MarkNonRepairable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NonRepairableError = true
}

// AddModifiedNodes unions ids into ModifiedNodes (spec §4.I: "ModifiedNodes
// = (modified_nodes or []) ∪ rep.modified_node_ids").
func (s *Store) AddModifiedNodes(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(s.ModifiedNodes))
	for _, id := range s.ModifiedNodes {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			s.ModifiedNodes = append(s.ModifiedNodes, id)
			seen[id] = true
		}
	}
}

// RecordLLMCall appends an opaque LLM call record (spec §6
// Metrics.RecordLLM; §3 __llm_calls__).
func (s *Store) RecordLLMCall(call any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LLMCalls = append(s.LLMCalls, call)
}

// Flatten builds the top-level view used as the shared-store source tier
// of the template resolver's Context (spec §4.B precedence tier 2): every
// node's outputs keyed by node id, declared inputs, and any legacy
// whitelisted root keys.
func (s *Store) Flatten() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.nodes)+len(s.inputs)+len(s.root))
	for k, v := range s.inputs {
		out[k] = v
	}
	for id, outputs := range s.nodes {
		out[id] = outputs
	}
	for k, v := range s.root {
		out[k] = v
	}
	return out
}

// ExecutionSnapshot returns a copy of the checkpoint, for callers that want
// to inspect resume state without racing the executor.
func (s *Store) ExecutionSnapshot() Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Execution.Clone()
}

// Clone returns a deep, independent copy of the store — used when a
// caller wants to retain resume_state across calls without the next run
// mutating the original (spec invariant: "Shared Store... discarded at
// run end (caller may keep it for resume)").
func (s *Store) Clone() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := New()
	out.RunID = s.RunID
	for id, outputs := range s.nodes {
		cp := make(map[string]any, len(outputs))
		for k, v := range outputs {
			cp[k] = v
		}
		out.nodes[id] = cp
	}
	for k, v := range s.inputs {
		out.inputs[k] = v
	}
	for k, v := range s.root {
		out.root[k] = v
	}
	out.Execution = s.Execution.Clone()
	out.CacheHits = append([]string(nil), s.CacheHits...)
	out.Warnings = make(map[string]string, len(s.Warnings))
	for k, v := range s.Warnings {
		out.Warnings[k] = v
	}
	out.NonRepairableError = s.NonRepairableError
	out.ModifiedNodes = append([]string(nil), s.ModifiedNodes...)
	out.LLMCalls = append([]any(nil), s.LLMCalls...)
	return out
}
