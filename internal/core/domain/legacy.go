package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// FlatState is the legacy flat representation some stages still operate on:
// documents, timeline, risks and friends as top-level collections instead of
// nested sections. It is a typed view, never a raw map; ToFlat and FromFlat
// are total inverse mappings modulo fields the flat form never carried
// (validation error list, derived timeline bounds).
type FlatState struct {
	CaseID        string
	SchemaVersion string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	CompanyName string
	LegalForm   string
	RegisterID  string
	Industry    string
	FiscalYear  string

	Documents        []InputDocument
	MissingDocuments []string
	Timeline         []TimelineEvent
	Observations     []FactObservation
	Notes            []string
	Risks            []RiskEntry
	LegalFindings    []LegalFinding
	RuleResults      []RuleResult
	RuleExecutionMS  int64
	CaseEvidence     []EvidenceChunk
	LegalEvidence    []EvidenceChunk
	AgentOutputs     map[string]AgentOutput
	Report           *Report
	StageDurationMS  map[string]int64
	TotalDurationMS  int64
	StageErrors      map[string]string
}

// ToFlat extracts the flat view a legacy-shaped stage expects.
func ToFlat(st *AnalysisState) *FlatState {
	f := &FlatState{
		CaseID:        st.CaseID,
		SchemaVersion: st.SchemaVersion,
		CreatedAt:     st.CreatedAt,
		UpdatedAt:     st.UpdatedAt,

		CompanyName: st.CaseContext.CompanyName,
		LegalForm:   st.CaseContext.LegalForm,
		RegisterID:  st.CaseContext.RegisterID,
		Industry:    st.CaseContext.Industry,
		FiscalYear:  st.CaseContext.FiscalYear,

		Documents:        append([]InputDocument{}, st.Inputs.Documents...),
		MissingDocuments: append([]string{}, st.Inputs.MissingDocuments...),
		Timeline:         append([]TimelineEvent{}, st.Timeline.Events...),
		Observations:     append([]FactObservation{}, st.Facts.Observations...),
		Notes:            append([]string{}, st.Facts.Notes...),
		Risks:            append([]RiskEntry{}, st.Risks.Heuristic...),
		LegalFindings:    append([]LegalFinding{}, st.Risks.LegalFindings...),
		RuleResults:      append([]RuleResult{}, st.LegalRules.Results...),
		RuleExecutionMS:  st.LegalRules.ExecutionMS,
		CaseEvidence:     append([]EvidenceChunk{}, st.RAGEvidence.CaseChunks...),
		LegalEvidence:    append([]EvidenceChunk{}, st.RAGEvidence.LegalChunks...),
		AgentOutputs:     map[string]AgentOutput{},
		StageDurationMS:  map[string]int64{},
		TotalDurationMS:  st.Metrics.TotalDurationMS,
		StageErrors:      map[string]string{},
	}
	for name, out := range st.Agents.Outputs {
		f.AgentOutputs[name] = out
	}
	for stage, ms := range st.Metrics.StageDurationMS {
		f.StageDurationMS[stage] = ms
	}
	for stage, detail := range st.Errors.StageErrors {
		f.StageErrors[stage] = detail
	}
	if st.Report != nil {
		report := *st.Report
		f.Report = &report
	}
	return f
}

// FromFlat migrates the flat view back onto the canonical nested schema.
// Timeline bounds are derived here; the flat form never stores them.
func FromFlat(f *FlatState) *AnalysisState {
	st := &AnalysisState{
		SchemaVersion: f.SchemaVersion,
		CaseID:        f.CaseID,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
		CaseContext: CaseContext{
			CompanyName: f.CompanyName,
			LegalForm:   f.LegalForm,
			RegisterID:  f.RegisterID,
			Industry:    f.Industry,
			FiscalYear:  f.FiscalYear,
		},
		Inputs: InputsSection{
			Documents:        append([]InputDocument{}, f.Documents...),
			MissingDocuments: append([]string{}, f.MissingDocuments...),
		},
		Timeline: TimelineSection{Events: append([]TimelineEvent{}, f.Timeline...)},
		Facts: FactsSection{
			Observations: append([]FactObservation{}, f.Observations...),
			Notes:        append([]string{}, f.Notes...),
		},
		Risks: RisksSection{
			Heuristic:     append([]RiskEntry{}, f.Risks...),
			LegalFindings: append([]LegalFinding{}, f.LegalFindings...),
		},
		LegalRules: LegalRulesSection{
			Results:     append([]RuleResult{}, f.RuleResults...),
			ExecutionMS: f.RuleExecutionMS,
		},
		RAGEvidence: EvidenceSection{
			CaseChunks:  append([]EvidenceChunk{}, f.CaseEvidence...),
			LegalChunks: append([]EvidenceChunk{}, f.LegalEvidence...),
		},
		Agents:  AgentsSection{Outputs: map[string]AgentOutput{}},
		Metrics: MetricsSection{StageDurationMS: map[string]int64{}, TotalDurationMS: f.TotalDurationMS},
		Errors: ErrorsSection{
			Validation:  []string{},
			StageErrors: map[string]string{},
		},
	}
	for name, out := range f.AgentOutputs {
		st.Agents.Outputs[name] = out
	}
	for stage, ms := range f.StageDurationMS {
		st.Metrics.StageDurationMS[stage] = ms
	}
	for stage, detail := range f.StageErrors {
		st.Errors.StageErrors[stage] = detail
	}
	if f.Report != nil {
		report := *f.Report
		st.Report = &report
	}

	sort.SliceStable(st.Timeline.Events, func(i, j int) bool {
		return st.Timeline.Events[i].Date.Before(st.Timeline.Events[j].Date)
	})
	if n := len(st.Timeline.Events); n > 0 {
		earliest := st.Timeline.Events[0].Date
		latest := st.Timeline.Events[n-1].Date
		st.Timeline.EarliestDate = &earliest
		st.Timeline.LatestDate = &latest
	}
	return st
}

// legacyPayload mirrors the flat wire shape older tooling still emits.
type legacyPayload struct {
	CaseID           string            `json:"case_id"`
	CreatedAt        *time.Time        `json:"created_at"`
	UpdatedAt        *time.Time        `json:"updated_at"`
	CompanyName      string            `json:"company_name"`
	LegalForm        string            `json:"legal_form"`
	RegisterID       string            `json:"register_id"`
	Industry         string            `json:"industry"`
	FiscalYear       string            `json:"fiscal_year"`
	Documents        []InputDocument   `json:"documents"`
	MissingDocuments []string          `json:"missing_documents"`
	Timeline         []TimelineEvent   `json:"timeline"`
	Facts            []FactObservation `json:"facts"`
	Notes            []string          `json:"notes"`
	Risks            []RiskEntry       `json:"risks"`
	LegalFindings    []LegalFinding    `json:"legal_findings"`
	RuleResults      []RuleResult      `json:"rule_results"`
	RuleExecutionMS  int64             `json:"rule_execution_ms"`
	CaseEvidence     []EvidenceChunk   `json:"case_evidence"`
	LegalEvidence    []EvidenceChunk   `json:"legal_evidence"`
	AgentOutputs     map[string]AgentOutput `json:"agent_outputs"`
	Report           *Report           `json:"report"`
	StageDurationMS  map[string]int64  `json:"stage_duration_ms"`
	TotalDurationMS  int64             `json:"total_duration_ms"`
	StageErrors      map[string]string `json:"stage_errors"`
}

var legacyKnownKeys = map[string]struct{}{
	"case_id": {}, "created_at": {}, "updated_at": {},
	"company_name": {}, "legal_form": {}, "register_id": {}, "industry": {}, "fiscal_year": {},
	"documents": {}, "missing_documents": {}, "timeline": {}, "facts": {}, "notes": {},
	"risks": {}, "legal_findings": {}, "rule_results": {}, "rule_execution_ms": {},
	"case_evidence": {}, "legal_evidence": {}, "agent_outputs": {}, "report": {},
	"stage_duration_ms": {}, "total_duration_ms": {}, "stage_errors": {},
	"schema_version": {},
}

// ParseLegacyPayload maps an old flat JSON document onto FlatState. Unknown
// legacy keys are dropped with a loud log, never merged into the typed schema.
func ParseLegacyPayload(data []byte, logger *slog.Logger) (*FlatState, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, WrapError(ErrInvalidInput, "parse legacy state", err)
	}
	for key := range raw {
		if _, ok := legacyKnownKeys[key]; !ok {
			if logger != nil {
				logger.Warn("legacy_state_key_dropped", "key", key)
			}
			delete(raw, key)
		}
	}

	filtered, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("reassemble legacy state: %w", err)
	}
	var payload legacyPayload
	if err := json.Unmarshal(filtered, &payload); err != nil {
		return nil, WrapError(ErrInvalidInput, "decode legacy state", err)
	}

	f := &FlatState{
		CaseID:           payload.CaseID,
		SchemaVersion:    SchemaVersion,
		CompanyName:      payload.CompanyName,
		LegalForm:        payload.LegalForm,
		RegisterID:       payload.RegisterID,
		Industry:         payload.Industry,
		FiscalYear:       payload.FiscalYear,
		Documents:        payload.Documents,
		MissingDocuments: payload.MissingDocuments,
		Timeline:         payload.Timeline,
		Observations:     payload.Facts,
		Notes:            payload.Notes,
		Risks:            payload.Risks,
		LegalFindings:    payload.LegalFindings,
		RuleResults:      payload.RuleResults,
		RuleExecutionMS:  payload.RuleExecutionMS,
		CaseEvidence:     payload.CaseEvidence,
		LegalEvidence:    payload.LegalEvidence,
		AgentOutputs:     payload.AgentOutputs,
		Report:           payload.Report,
		StageDurationMS:  payload.StageDurationMS,
		TotalDurationMS:  payload.TotalDurationMS,
		StageErrors:      payload.StageErrors,
	}
	if payload.CreatedAt != nil {
		f.CreatedAt = *payload.CreatedAt
	}
	if payload.UpdatedAt != nil {
		f.UpdatedAt = *payload.UpdatedAt
	}
	if f.AgentOutputs == nil {
		f.AgentOutputs = map[string]AgentOutput{}
	}
	if f.StageDurationMS == nil {
		f.StageDurationMS = map[string]int64{}
	}
	if f.StageErrors == nil {
		f.StageErrors = map[string]string{}
	}
	return f, nil
}
