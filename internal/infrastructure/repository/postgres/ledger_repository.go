package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// LedgerRepository is the durable, append-only mirror of the in-memory budget
// ledger. Rows are never updated or deleted.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) AppendEntry(ctx context.Context, caseID string, entry domain.LedgerEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ledger_entries (
	case_id, phase, provider, model, input_tokens, output_tokens, cost_usd, trace_id, pricing_version, pricing_fingerprint, recorded_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		caseID, entry.Phase, entry.Provider, entry.Model, entry.InputTokens, entry.OutputTokens,
		entry.CostUSD, entry.TraceID, entry.PricingVersion, entry.PricingFingerprint, entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListEntries(ctx context.Context, caseID string) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT phase, provider, model, input_tokens, output_tokens, cost_usd, trace_id, pricing_version, pricing_fingerprint, recorded_at
FROM ledger_entries
WHERE case_id = $1
ORDER BY recorded_at, id
`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		err := rows.Scan(
			&entry.Phase, &entry.Provider, &entry.Model, &entry.InputTokens, &entry.OutputTokens,
			&entry.CostUSD, &entry.TraceID, &entry.PricingVersion, &entry.PricingFingerprint, &entry.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}
