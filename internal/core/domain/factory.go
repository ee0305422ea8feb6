package domain

import (
	"errors"
	"strings"
	"time"
)

const unknownCaseID = "unknown"

// NewInitialState is the single legitimate constructor for a fresh
// AnalysisState. Every nested collection is initialized non-nil so stages can
// append without nil checks.
func NewInitialState(caseID string, cctx CaseContext) (*AnalysisState, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, WrapError(ErrInvalidInput, "create initial state", errors.New("case id is empty"))
	}

	now := time.Now().UTC()
	return &AnalysisState{
		SchemaVersion: SchemaVersion,
		CaseID:        caseID,
		CreatedAt:     now,
		UpdatedAt:     now,
		CaseContext:   cctx,
		Inputs: InputsSection{
			Documents:        []InputDocument{},
			MissingDocuments: []string{},
		},
		Timeline: TimelineSection{Events: []TimelineEvent{}},
		Facts: FactsSection{
			Observations: []FactObservation{},
			Notes:        []string{},
		},
		Risks: RisksSection{
			Heuristic:     []RiskEntry{},
			LegalFindings: []LegalFinding{},
		},
		LegalRules: LegalRulesSection{Results: []RuleResult{}},
		RAGEvidence: EvidenceSection{
			CaseChunks:  []EvidenceChunk{},
			LegalChunks: []EvidenceChunk{},
		},
		Agents:  AgentsSection{Outputs: map[string]AgentOutput{}},
		Metrics: MetricsSection{StageDurationMS: map[string]int64{}},
		Errors: ErrorsSection{
			Validation:  []string{},
			StageErrors: map[string]string{},
		},
	}, nil
}

// ValidateInitialState rejects states that must not enter the pipeline at all.
func ValidateInitialState(st *AnalysisState) error {
	if st == nil {
		return &ValidationError{Stage: "initial", Field: "state", Reason: "state is nil", Kind: ErrRequiredField}
	}
	caseID := strings.TrimSpace(st.CaseID)
	if caseID == "" || caseID == unknownCaseID {
		return &ValidationError{Stage: "initial", Field: "case_id", Reason: "case id is empty or unknown", Kind: ErrRequiredField}
	}
	if st.SchemaVersion != SchemaVersion {
		return &ValidationError{
			Stage:  "initial",
			Field:  "schema_version",
			Reason: "got " + st.SchemaVersion + ", want " + SchemaVersion,
			Kind:   ErrSchemaVersion,
		}
	}
	if st.CreatedAt.IsZero() {
		return &ValidationError{Stage: "initial", Field: "created_at", Reason: "timestamp is zero", Kind: ErrRequiredField}
	}
	if st.UpdatedAt.IsZero() {
		return &ValidationError{Stage: "initial", Field: "updated_at", Reason: "timestamp is zero", Kind: ErrRequiredField}
	}
	return nil
}
