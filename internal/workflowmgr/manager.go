// Package workflowmgr implements the Workflow Manager (spec §4.J): named,
// persisted IR plus sidecar execution metadata, against a pluggable
// BlobStore. The core treats storage contents as opaque; this package
// only defines the shape and the name-validation rules.
package workflowmgr

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/smilemakc/pflow/internal/ir"
)

// ErrNotFound is returned by Load/LoadIR/Delete/UpdateIR/UpdateMetadata for
// an unknown name (spec §4.J: "raises NotFound on unknown").
var ErrNotFound = errors.New("workflowmgr: not found")

// ErrAlreadyExists is returned by Save when name is taken and force=false.
var ErrAlreadyExists = errors.New("workflowmgr: already exists")

// ErrInvalidName is returned when name fails the kebab-case/length/reserved
// rules (spec §4.J: "kebab-case, ≤50 chars, not in a small reserved set").
var ErrInvalidName = errors.New("workflowmgr: invalid name")

var namePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// reservedNames mirrors the teacher's reservation of a handful of
// infrastructure-meaningful identifiers that would collide with tooling
// conventions if used as a workflow name.
var reservedNames = map[string]bool{
	"new": true, "list": true, "default": true, "all": true, "none": true,
}

// ValidName reports whether name satisfies spec §4.J's naming rules.
func ValidName(name string) bool {
	if len(name) == 0 || len(name) > 50 {
		return false
	}
	if reservedNames[name] {
		return false
	}
	return namePattern.MatchString(name)
}

// Metadata is the sidecar record kept alongside the IR (spec §6:
// "Persisted state layout").
type Metadata struct {
	Description       string    `json:"description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	ExecutionCount    int       `json:"execution_count"`
	LastExecutionAt   time.Time `json:"last_execution_at,omitempty"`
	LastExecutionOK   bool      `json:"last_execution_ok,omitempty"`
	LastExecutionNote string    `json:"last_execution_note,omitempty"`
}

// MetadataPatch carries only the fields UpdateMetadata should merge in;
// zero-value fields are left untouched (spec §4.J: "merge-write execution
// history counters").
type MetadataPatch struct {
	IncrementExecutionCount bool
	LastExecutionAt         *time.Time
	LastExecutionOK         *bool
	LastExecutionNote       *string
}

// Entry is one name's {ir, metadata} pair as returned by Load.
type Entry struct {
	IR       *ir.Workflow
	Metadata Metadata
}

// Summary is one row of ListAll.
type Summary struct {
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BlobStore is the storage collaborator the core assumes exists (spec §1:
// "a blob store with put/get/list is assumed"); it is opaque key/value
// storage keyed by workflow name.
type BlobStore interface {
	Put(ctx context.Context, name string, irBytes, metaBytes []byte, force bool) error
	Get(ctx context.Context, name string) (irBytes, metaBytes []byte, err error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Manager is the Workflow Manager (spec §4.J).
type Manager struct {
	store BlobStore
}

// New constructs a Manager backed by store.
func New(store BlobStore) *Manager {
	return &Manager{store: store}
}
