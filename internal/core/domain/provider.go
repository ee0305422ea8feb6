package domain

import "time"

// CompletionRequest is the provider-facing request shape.
type CompletionRequest struct {
	Model     string
	Prompt    string
	MaxTokens int
}

// Completion is a provider response with the token accounting the gate needs
// for cost recording. CostUSD is the provider-reported cost when available,
// zero otherwise.
type Completion struct {
	Text         string  `json:"text"`
	Provider     string  `json:"provider"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Cached       bool    `json:"cached"`
}

// EmbedResult carries query/chunk vectors plus usage accounting.
type EmbedResult struct {
	Vectors     [][]float32 `json:"vectors"`
	Provider    string      `json:"provider"`
	InputTokens int         `json:"input_tokens"`
	CostUSD     float64     `json:"cost_usd"`
}

// CaseDocument is an uploaded source document with its extracted text.
type CaseDocument struct {
	ID          string     `json:"id"`
	CaseID      string     `json:"case_id"`
	DocType     string     `json:"doc_type"`
	Filename    string     `json:"filename"`
	MimeType    string     `json:"mime_type"`
	StoragePath string     `json:"storage_path"`
	Text        string     `json:"text"`
	Date        *time.Time `json:"date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RunStatus tracks one pipeline execution of a case.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunRunning    RunStatus = "running"
	RunCompleted  RunStatus = "completed"
	RunIncomplete RunStatus = "incomplete"
	RunFailed     RunStatus = "failed"
)

type CaseRun struct {
	ID        string         `json:"id"`
	CaseID    string         `json:"case_id"`
	Status    RunStatus      `json:"status"`
	Stage     string         `json:"stage,omitempty"`
	Error     string         `json:"error,omitempty"`
	State     *AnalysisState `json:"state,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
