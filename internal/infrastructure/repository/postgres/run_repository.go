package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// RunRepository persists pipeline runs; the final state lands as one jsonb
// document next to the status row.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.CaseRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO case_runs (id, case_id, status, stage, error_message, state, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULL,$6,$7)
`,
		run.ID, run.CaseID, string(run.Status), run.Stage, run.Error, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, runID string, status domain.RunStatus, stage, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE case_runs
SET status = $2, stage = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, runID, string(status), stage, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

func (r *RunRepository) SaveState(ctx context.Context, runID string, status domain.RunStatus, state *domain.AnalysisState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE case_runs
SET status = $2, state = $3, updated_at = $4
WHERE id = $1
`, runID, string(status), stateJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save run state: %w", err)
	}
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, runID string) (*domain.CaseRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, case_id, status, stage, error_message, state, created_at, updated_at
FROM case_runs
WHERE id = $1
`, runID)
	return scanRun(row, runID)
}

func (r *RunRepository) LatestByCase(ctx context.Context, caseID string) (*domain.CaseRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, case_id, status, stage, error_message, state, created_at, updated_at
FROM case_runs
WHERE case_id = $1
ORDER BY created_at DESC
LIMIT 1
`, caseID)
	return scanRun(row, caseID)
}

func scanRun(row *sql.Row, ref string) (*domain.CaseRun, error) {
	var run domain.CaseRun
	var status string
	var stage, errMessage sql.NullString
	var stateRaw []byte

	err := row.Scan(&run.ID, &run.CaseID, &status, &stage, &errMessage, &stateRaw, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "load run", fmt.Errorf("run %s", ref))
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	run.Stage = stage.String
	run.Error = errMessage.String
	if len(stateRaw) > 0 {
		var state domain.AnalysisState
		if err := json.Unmarshal(stateRaw, &state); err != nil {
			return nil, fmt.Errorf("unmarshal run state: %w", err)
		}
		run.State = &state
	}
	return &run, nil
}
