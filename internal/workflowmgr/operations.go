package workflowmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/smilemakc/pflow/internal/ir"
)

// Save writes a brand-new named workflow. force=true allows overwriting an
// existing name (spec §4.J).
func (m *Manager) Save(ctx context.Context, name string, wf *ir.Workflow, description string, force bool) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	irBytes, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("workflowmgr: marshaling ir: %w", err)
	}

	now := time.Now()
	meta := Metadata{Description: description, CreatedAt: now, UpdatedAt: now}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("workflowmgr: marshaling metadata: %w", err)
	}

	if err := m.store.Put(ctx, name, irBytes, metaBytes, force); err != nil {
		return err
	}
	return nil
}

// Load returns the full {ir, metadata} entry for name.
func (m *Manager) Load(ctx context.Context, name string) (Entry, error) {
	irBytes, metaBytes, err := m.store.Get(ctx, name)
	if err != nil {
		return Entry{}, err
	}

	var wf ir.Workflow
	if err := json.Unmarshal(irBytes, &wf); err != nil {
		return Entry{}, fmt.Errorf("workflowmgr: unmarshaling ir for %q: %w", name, err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return Entry{}, fmt.Errorf("workflowmgr: unmarshaling metadata for %q: %w", name, err)
	}

	return Entry{IR: &wf, Metadata: meta}, nil
}

// LoadIR returns only the workflow IR for name.
func (m *Manager) LoadIR(ctx context.Context, name string) (*ir.Workflow, error) {
	entry, err := m.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return entry.IR, nil
}

// ListAll returns a summary of every saved workflow, sorted by name.
func (m *Manager) ListAll(ctx context.Context) ([]Summary, error) {
	names, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	summaries := make([]Summary, 0, len(names))
	for _, name := range names {
		_, metaBytes, err := m.store.Get(ctx, name)
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			continue
		}
		summaries = append(summaries, Summary{
			Name:        name,
			Description: meta.Description,
			CreatedAt:   meta.CreatedAt,
			UpdatedAt:   meta.UpdatedAt,
		})
	}
	return summaries, nil
}

// UpdateIR atomically replaces name's IR body, preserving its metadata
// (spec §4.J).
func (m *Manager) UpdateIR(ctx context.Context, name string, wf *ir.Workflow) error {
	entry, err := m.Load(ctx, name)
	if err != nil {
		return err
	}

	irBytes, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("workflowmgr: marshaling ir: %w", err)
	}
	entry.Metadata.UpdatedAt = time.Now()
	metaBytes, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("workflowmgr: marshaling metadata: %w", err)
	}

	return m.store.Put(ctx, name, irBytes, metaBytes, true)
}

// UpdateMetadata merges patch into name's stored metadata (spec §4.J).
func (m *Manager) UpdateMetadata(ctx context.Context, name string, patch MetadataPatch) error {
	irBytes, metaBytes, err := m.store.Get(ctx, name)
	if err != nil {
		return err
	}

	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("workflowmgr: unmarshaling metadata for %q: %w", name, err)
	}

	if patch.IncrementExecutionCount {
		meta.ExecutionCount++
	}
	if patch.LastExecutionAt != nil {
		meta.LastExecutionAt = *patch.LastExecutionAt
	}
	if patch.LastExecutionOK != nil {
		meta.LastExecutionOK = *patch.LastExecutionOK
	}
	if patch.LastExecutionNote != nil {
		meta.LastExecutionNote = *patch.LastExecutionNote
	}
	meta.UpdatedAt = time.Now()

	newMetaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("workflowmgr: marshaling metadata: %w", err)
	}
	return m.store.Put(ctx, name, irBytes, newMetaBytes, true)
}

// Delete removes name entirely.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.store.Delete(ctx, name)
}
