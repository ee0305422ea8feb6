package ports

import (
	"context"
	"io"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// DocumentIngestor is the inbound contract for uploading case documents.
type DocumentIngestor interface {
	Upload(ctx context.Context, caseID, docType, filename, mimeType string, body io.Reader) (*domain.CaseDocument, error)
}

// CaseAnalyzer runs the full analysis pipeline for a queued run.
type CaseAnalyzer interface {
	Analyze(ctx context.Context, caseID, runID string) error
}

// RunReader is the inbound read model for runs and reports.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*domain.CaseRun, error)
	LatestRun(ctx context.Context, caseID string) (*domain.CaseRun, error)
}

// BudgetReader exposes the case budget for the API surface.
type BudgetReader interface {
	GetBudget(ctx context.Context, caseID string) (domain.CaseBudget, error)
}
