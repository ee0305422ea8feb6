package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// CaseDocumentRepository persists uploaded documents with their extracted
// text. Raw bytes live in object storage; this table holds the metadata and
// the text the pipeline reads.
type CaseDocumentRepository struct {
	db *sql.DB
}

func NewCaseDocumentRepository(db *sql.DB) *CaseDocumentRepository {
	return &CaseDocumentRepository{db: db}
}

func (r *CaseDocumentRepository) Add(ctx context.Context, doc *domain.CaseDocument) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO case_documents (id, case_id, doc_type, filename, mime_type, storage_path, content, doc_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.CaseID, doc.DocType, doc.Filename, doc.MimeType, doc.StoragePath, doc.Text, doc.Date, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert case document: %w", err)
	}
	return nil
}

func (r *CaseDocumentRepository) ListByCase(ctx context.Context, caseID string) ([]domain.CaseDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, case_id, doc_type, filename, mime_type, storage_path, content, doc_date, created_at
FROM case_documents
WHERE case_id = $1
ORDER BY created_at
`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query case documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.CaseDocument
	for rows.Next() {
		var doc domain.CaseDocument
		var docDate sql.NullTime
		err := rows.Scan(
			&doc.ID, &doc.CaseID, &doc.DocType, &doc.Filename, &doc.MimeType,
			&doc.StoragePath, &doc.Text, &docDate, &doc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan case document: %w", err)
		}
		if docDate.Valid {
			date := docDate.Time
			doc.Date = &date
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case documents: %w", err)
	}
	return docs, nil
}
