package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo stores run records in Postgres. The full run is kept as a JSONB
// snapshot alongside a few promoted columns for querying.
type PGRepo struct {
	DB *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

func (r *PGRepo) Save(ctx context.Context, run *AnalysisRun) error {
	record, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	standards, err := json.Marshal(run.Standards)
	if err != nil {
		return fmt.Errorf("marshal standards: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO analysis_runs (document_id, framework, standards, mode, status, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id) DO UPDATE SET
			framework = EXCLUDED.framework,
			standards = EXCLUDED.standards,
			mode = EXCLUDED.mode,
			status = EXCLUDED.status,
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at
	`, run.DocumentID, run.Framework, standards, run.Mode, run.Status, record, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (r *PGRepo) Get(ctx context.Context, documentID string) (*AnalysisRun, error) {
	var record []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT record FROM analysis_runs WHERE document_id = $1`, documentID,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	var run AnalysisRun
	if err := json.Unmarshal(record, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

var _ Repo = (*PGRepo)(nil)
