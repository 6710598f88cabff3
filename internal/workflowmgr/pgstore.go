package workflowmgr

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// workflowRow is the bun model backing PGStore, grounded on the teacher's
// src/workflow/models.go (bun.BaseModel + notnull columns) but collapsed
// to the two opaque JSON blobs the core actually needs — the core treats
// IR and metadata as opaque bytes (spec §4.J: "Storage contents are opaque
// to the core").
type workflowRow struct {
	bun.BaseModel `bun:"table:pflow_workflows,alias:w"`

	Name      string    `bun:"name,pk"`
	IRJSON    []byte    `bun:"ir_json,notnull"`
	MetaJSON  []byte    `bun:"meta_json,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// PGStore is a Postgres-backed BlobStore using bun/pgdialect/pgdriver,
// wiring the same stack the teacher uses for its own persistence
// (SPEC_FULL §2 DOMAIN STACK) into the Workflow Manager's storage layer.
type PGStore struct {
	db *bun.DB
}

// NewPGStore wraps an already-configured *bun.DB (built by the caller via
// pgdriver.NewConnector + pgdialect.New(), as the teacher's internal/db
// package does) and ensures the backing table exists.
func NewPGStore(ctx context.Context, db *bun.DB) (*PGStore, error) {
	if _, err := db.NewCreateTable().Model((*workflowRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, err
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Put(ctx context.Context, name string, irBytes, metaBytes []byte, force bool) error {
	row := &workflowRow{Name: name, IRJSON: irBytes, MetaJSON: metaBytes, UpdatedAt: time.Now()}

	if !force {
		exists, err := s.db.NewSelect().Model((*workflowRow)(nil)).Where("name = ?", name).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyExists
		}
	}

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (name) DO UPDATE").
		Set("ir_json = EXCLUDED.ir_json").
		Set("meta_json = EXCLUDED.meta_json").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *PGStore) Get(ctx context.Context, name string) ([]byte, []byte, error) {
	row := new(workflowRow)
	err := s.db.NewSelect().Model(row).Where("name = ?", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return row.IRJSON, row.MetaJSON, nil
}

func (s *PGStore) List(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.NewSelect().Model((*workflowRow)(nil)).Column("name").Order("name ASC").Scan(ctx, &names)
	return names, err
}

func (s *PGStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.NewDelete().Model((*workflowRow)(nil)).Where("name = ?", name).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
