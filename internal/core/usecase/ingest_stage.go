package usecase

import (
	"context"
	"fmt"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

// requiredDocTypes are the document kinds an insolvency audit expects. Absent
// kinds are recorded as known-but-missing, not treated as errors.
var requiredDocTypes = []string{"annual_accounts", "bank_statement", "debtor_list"}

// IngestStage loads the case's uploaded documents into the run state.
// Documents are append-only within a run.
type IngestStage struct {
	docs ports.CaseDocumentStore
}

func NewIngestStage(docs ports.CaseDocumentStore) *IngestStage {
	return &IngestStage{docs: docs}
}

func (s *IngestStage) Stage() Stage {
	return Stage{Name: "ingest", Run: s.run}
}

func (s *IngestStage) run(ctx context.Context, st *domain.FlatState) error {
	docs, err := s.docs.ListByCase(ctx, st.CaseID)
	if err != nil {
		return fmt.Errorf("list case documents: %w", err)
	}

	present := map[string]bool{}
	for _, doc := range docs {
		st.Documents = append(st.Documents, domain.InputDocument{
			DocID:   doc.ID,
			DocType: doc.DocType,
			Content: doc.Text,
			Date:    doc.Date,
			Metadata: map[string]string{
				"filename":  doc.Filename,
				"mime_type": doc.MimeType,
			},
		})
		present[doc.DocType] = true
	}
	for _, docType := range requiredDocTypes {
		if !present[docType] {
			st.MissingDocuments = append(st.MissingDocuments, docType)
		}
	}
	if len(docs) == 0 {
		st.StageErrors["ingest"] = "no documents uploaded for case"
	}
	return nil
}
