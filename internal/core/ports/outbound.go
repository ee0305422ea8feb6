package ports

import (
	"context"
	"io"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// FactStore persists deduplicated facts. Upsert is idempotent under identical
// fingerprint input and returns the stable fact identifier.
type FactStore interface {
	Upsert(ctx context.Context, fact domain.Fact) (string, error)
	ListByCase(ctx context.Context, caseID string) ([]domain.Fact, error)
}

// LedgerStore is the durable mirror of the budget ledger.
type LedgerStore interface {
	AppendEntry(ctx context.Context, caseID string, entry domain.LedgerEntry) error
	ListEntries(ctx context.Context, caseID string) ([]domain.LedgerEntry, error)
}

// CacheBackend is the cold cache tier. The contract is identical across
// backends: store/get/delete/delete-by-case/cleanup-expired.
type CacheBackend interface {
	Store(ctx context.Context, key, caseID string, payload []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	DeleteByCase(ctx context.Context, caseID string) error
	CleanupExpired(ctx context.Context) (int, error)
}

// ModelClient talks to the paid language-model provider. Only the FinOps gate
// may call it.
type ModelClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
	Embed(ctx context.Context, model string, texts []string) (domain.EmbedResult, error)
}

// EvidenceRetriever searches one corpus for supporting evidence chunks.
type EvidenceRetriever interface {
	Search(ctx context.Context, corpus, caseID string, queryVector []float32, limit int) ([]domain.EvidenceChunk, error)
}

// CostGate is the only legitimate entry point for operations with real
// monetary cost.
type CostGate interface {
	Complete(ctx context.Context, call CompletionCall) (domain.Completion, error)
	Retrieve(ctx context.Context, call RetrievalCall) ([]domain.EvidenceChunk, error)
	CanSpend(ctx context.Context, caseID string, amountUSD float64) (bool, error)
	EstimateCompletionUSD(model string, inputTokens, outputTokens int) (float64, error)
}

// CompletionCall is a gated completion request, attributed to a case and a
// pipeline phase for ledger recording.
type CompletionCall struct {
	CaseID    string
	Phase     string
	Model     string
	Prompt    string
	MaxTokens int
}

// RetrievalCall is a gated evidence retrieval: query embedding (the paid
// part) plus a corpus search.
type RetrievalCall struct {
	CaseID     string
	Phase      string
	Corpus     string
	Query      string
	EmbedModel string
	TopK       int
}

// CaseDocumentStore persists uploaded documents and their extracted text.
type CaseDocumentStore interface {
	Add(ctx context.Context, doc *domain.CaseDocument) error
	ListByCase(ctx context.Context, caseID string) ([]domain.CaseDocument, error)
}

// RunStore persists pipeline runs and their final state.
type RunStore interface {
	Create(ctx context.Context, run *domain.CaseRun) error
	UpdateStatus(ctx context.Context, runID string, status domain.RunStatus, stage, errMessage string) error
	SaveState(ctx context.Context, runID string, status domain.RunStatus, state *domain.AnalysisState) error
	GetByID(ctx context.Context, runID string) (*domain.CaseRun, error)
	LatestByCase(ctx context.Context, caseID string) (*domain.CaseRun, error)
}

// ObjectStorage stores raw uploaded files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from an uploaded file body.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data io.Reader) (string, error)
}

// MessageQueue publishes/consumes analysis run requests.
type MessageQueue interface {
	PublishAnalysisRequested(ctx context.Context, caseID, runID string) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(ctx context.Context, caseID, runID string) error) error
}
