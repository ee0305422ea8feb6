package domain

import "time"

// SchemaVersion is the single supported version of AnalysisState. A state
// carrying any other version is rejected, not migrated silently.
const SchemaVersion = "2.1"

// AnalysisState is the full contract for one case-analysis run. The schema is
// closed: untyped payloads are decoded with unknown fields rejected at every
// nesting level, and the struct shape makes ill-typed assignments impossible
// for native callers.
type AnalysisState struct {
	SchemaVersion string    `json:"schema_version"`
	CaseID        string    `json:"case_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	CaseContext CaseContext       `json:"case_context"`
	Inputs      InputsSection     `json:"inputs"`
	Timeline    TimelineSection   `json:"timeline"`
	Facts       FactsSection      `json:"facts"`
	Risks       RisksSection      `json:"risks"`
	LegalRules  LegalRulesSection `json:"legal_rules"`
	RAGEvidence EvidenceSection   `json:"rag_evidence"`
	Agents      AgentsSection     `json:"agents"`
	Report      *Report           `json:"report"`
	Metrics     MetricsSection    `json:"metrics"`
	Errors      ErrorsSection     `json:"errors"`
}

// CaseContext holds descriptive company identity. The pipeline never infers
// these fields; they come from the intake surface or stay empty.
type CaseContext struct {
	CompanyName string `json:"company_name,omitempty"`
	LegalForm   string `json:"legal_form,omitempty"`
	RegisterID  string `json:"register_id,omitempty"`
	Industry    string `json:"industry,omitempty"`
	FiscalYear  string `json:"fiscal_year,omitempty"`
}

type InputsSection struct {
	Documents        []InputDocument `json:"documents"`
	MissingDocuments []string        `json:"missing_documents"`
}

type InputDocument struct {
	DocID    string            `json:"doc_id"`
	DocType  string            `json:"doc_type"`
	Content  string            `json:"content"`
	Date     *time.Time        `json:"date,omitempty"`
	Metadata map[string]string `json:"metadata"`
}

type TimelineSection struct {
	Events       []TimelineEvent `json:"events"`
	EarliestDate *time.Time      `json:"earliest_date,omitempty"`
	LatestDate   *time.Time      `json:"latest_date,omitempty"`
}

type TimelineEvent struct {
	Date        time.Time `json:"date"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	AmountEUR   float64   `json:"amount_eur,omitempty"`
	SourceDocID string    `json:"source_doc_id,omitempty"`
}

type FactsSection struct {
	Observations []FactObservation `json:"observations"`
	Notes        []string          `json:"notes"`
}

// FactObservation is the in-state projection of a persisted Fact row.
type FactObservation struct {
	Fingerprint  string         `json:"fingerprint"`
	FactType     string         `json:"fact_type"`
	Date         string         `json:"date"`
	AmountEUR    float64        `json:"amount_eur"`
	Counterparty string         `json:"counterparty"`
	Confidence   float64        `json:"confidence"`
	Evidence     []FactEvidence `json:"evidence"`
}

type FactEvidence struct {
	DocumentID string `json:"document_id"`
	Excerpt    string `json:"excerpt,omitempty"`
}

type RisksSection struct {
	Heuristic     []RiskEntry    `json:"heuristic"`
	LegalFindings []LegalFinding `json:"legal_findings"`
}

type RiskEntry struct {
	RuleID      string `json:"rule_id"`
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Detail      string `json:"detail"`
	SourceDocID string `json:"source_doc_id,omitempty"`
}

type LegalFinding struct {
	RuleID     string `json:"rule_id"`
	Norm       string `json:"norm"`
	Assessment string `json:"assessment"`
	Basis      string `json:"basis"`
	Degraded   bool   `json:"degraded"`
}

type LegalRulesSection struct {
	Results     []RuleResult `json:"results"`
	ExecutionMS int64        `json:"execution_ms"`
}

type RuleResult struct {
	RuleID    string `json:"rule_id"`
	Norm      string `json:"norm"`
	Triggered bool   `json:"triggered"`
	Rationale string `json:"rationale"`
}

type EvidenceSection struct {
	CaseChunks  []EvidenceChunk `json:"case_chunks"`
	LegalChunks []EvidenceChunk `json:"legal_chunks"`
}

type EvidenceChunk struct {
	ChunkID   string  `json:"chunk_id"`
	Corpus    string  `json:"corpus"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	SourceRef string  `json:"source_ref,omitempty"`
}

type AgentsSection struct {
	Outputs map[string]AgentOutput `json:"outputs"`
}

type AgentOutput struct {
	Model    string `json:"model"`
	Text     string `json:"text"`
	TraceID  string `json:"trace_id,omitempty"`
	Degraded bool   `json:"degraded"`
}

type Report struct {
	Title            string    `json:"title"`
	Summary          string    `json:"summary"`
	Body             string    `json:"body"`
	GeneratedAt      time.Time `json:"generated_at"`
	Incomplete       bool      `json:"incomplete"`
	IncompleteReason string    `json:"incomplete_reason,omitempty"`
}

type MetricsSection struct {
	StageDurationMS map[string]int64 `json:"stage_duration_ms"`
	TotalDurationMS int64            `json:"total_duration_ms"`
}

type ErrorsSection struct {
	Validation  []string          `json:"validation"`
	StageErrors map[string]string `json:"stage_errors"`
}
