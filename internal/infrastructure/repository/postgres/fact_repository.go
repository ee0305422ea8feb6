package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// FactRepository persists deduplicated facts. The fingerprint is the
// uniqueness anchor: a colliding upsert keeps the higher confidence and
// merges the evidence lists instead of inserting a second row.
type FactRepository struct {
	db *sql.DB
}

func NewFactRepository(db *sql.DB) *FactRepository {
	return &FactRepository{db: db}
}

// Upsert is a single statement so concurrent workers observing the same
// payment cannot race past each other: the conflict arm keeps the higher
// confidence and folds the evidence lists together, deduplicated.
func (r *FactRepository) Upsert(ctx context.Context, fact domain.Fact) (string, error) {
	id := fact.ID
	if id == "" {
		id = uuid.NewString()
	}
	evidenceJSON, err := json.Marshal(fact.Evidence)
	if err != nil {
		return "", fmt.Errorf("marshal evidence: %w", err)
	}

	var rowID string
	err = r.db.QueryRowContext(ctx, `
INSERT INTO case_facts (
	id, case_id, fact_type, fact_date, amount_eur, counterparty, confidence, fingerprint, evidence, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
ON CONFLICT (fingerprint) DO UPDATE SET
	confidence = GREATEST(case_facts.confidence, EXCLUDED.confidence),
	evidence = (
		SELECT COALESCE(jsonb_agg(DISTINCT item), '[]'::jsonb)
		FROM jsonb_array_elements(case_facts.evidence || EXCLUDED.evidence) AS item
	),
	updated_at = EXCLUDED.updated_at
RETURNING id
`,
		id, fact.CaseID, fact.FactType, fact.Date, fact.AmountEUR, fact.Counterparty,
		fact.Confidence, fact.Fingerprint, evidenceJSON, time.Now().UTC(),
	).Scan(&rowID)
	if err != nil {
		return "", fmt.Errorf("upsert fact: %w", err)
	}
	return rowID, nil
}

func (r *FactRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Fact, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, case_id, fact_type, fact_date, amount_eur, counterparty, confidence, fingerprint, evidence, created_at, updated_at
FROM case_facts
WHERE case_id = $1
ORDER BY fact_date, fingerprint
`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFact(row rowScanner) (domain.Fact, error) {
	var fact domain.Fact
	var evidenceRaw []byte

	err := row.Scan(
		&fact.ID, &fact.CaseID, &fact.FactType, &fact.Date, &fact.AmountEUR, &fact.Counterparty,
		&fact.Confidence, &fact.Fingerprint, &evidenceRaw, &fact.CreatedAt, &fact.UpdatedAt,
	)
	if err != nil {
		return domain.Fact{}, fmt.Errorf("scan fact: %w", err)
	}
	if err := json.Unmarshal(evidenceRaw, &fact.Evidence); err != nil {
		return domain.Fact{}, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return fact, nil
}
