package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ValidateState gates a stage transition. It accepts a native *AnalysisState
// or an untyped JSON payload (raw bytes or a decoded map); untyped payloads in
// legacy flat form are migrated first, canonical payloads are decoded strictly
// with unknown fields rejected at every nesting level. Violations surface as
// *ValidationError carrying stage, field path and reason.
func ValidateState(candidate any, stage string, logger *slog.Logger) (*AnalysisState, error) {
	switch v := candidate.(type) {
	case *AnalysisState:
		if v == nil {
			return nil, &ValidationError{Stage: stage, Field: "state", Reason: "state is nil", Kind: ErrRequiredField}
		}
		if err := validateNative(v, stage); err != nil {
			return nil, err
		}
		return v, nil
	case json.RawMessage:
		return validatePayload([]byte(v), stage, logger)
	case []byte:
		return validatePayload(v, stage, logger)
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, &ValidationError{Stage: stage, Field: "state", Reason: "unserializable candidate: " + err.Error(), Kind: ErrFieldType}
		}
		return validatePayload(data, stage, logger)
	default:
		return nil, &ValidationError{
			Stage:  stage,
			Field:  "state",
			Reason: fmt.Sprintf("unsupported candidate type %T", candidate),
			Kind:   ErrFieldType,
		}
	}
}

func validatePayload(data []byte, stage string, logger *slog.Logger) (*AnalysisState, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ValidationError{Stage: stage, Field: "state", Reason: "not a JSON object: " + err.Error(), Kind: ErrFieldType}
	}

	if isLegacyShape(probe) {
		flat, err := ParseLegacyPayload(data, logger)
		if err != nil {
			return nil, &ValidationError{Stage: stage, Field: "state", Reason: err.Error(), Kind: ErrInvalidInput}
		}
		st := FromFlat(flat)
		if err := validateNative(st, stage); err != nil {
			return nil, err
		}
		return st, nil
	}

	st, err := decodeStrict(data, stage)
	if err != nil {
		return nil, err
	}
	if err := validateNative(st, stage); err != nil {
		return nil, err
	}
	return st, nil
}

// isLegacyShape detects the old flat representation: top-level documents
// without a nested inputs section, or timeline as a raw list.
func isLegacyShape(probe map[string]json.RawMessage) bool {
	_, hasInputs := probe["inputs"]
	if _, hasDocs := probe["documents"]; hasDocs && !hasInputs {
		return true
	}
	if timeline, ok := probe["timeline"]; ok {
		trimmed := bytes.TrimSpace(timeline)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			return true
		}
	}
	return false
}

func decodeStrict(data []byte, stage string) (*AnalysisState, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var st AnalysisState
	if err := dec.Decode(&st); err != nil {
		return nil, decodeErrorToValidation(err, stage)
	}
	return &st, nil
}

func decodeErrorToValidation(err error, stage string) error {
	msg := err.Error()
	if field, ok := strings.CutPrefix(msg, `json: unknown field `); ok {
		return &ValidationError{
			Stage:  stage,
			Field:  strings.Trim(field, `"`),
			Reason: "field is not part of the schema",
			Kind:   ErrUnknownField,
		}
	}
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		return &ValidationError{
			Stage:  stage,
			Field:  typeErr.Field,
			Reason: fmt.Sprintf("got JSON %s, want %s", typeErr.Value, typeErr.Type),
			Kind:   ErrFieldType,
		}
	}
	return &ValidationError{Stage: stage, Field: "state", Reason: msg, Kind: ErrFieldType}
}

func validateNative(st *AnalysisState, stage string) error {
	if st.SchemaVersion != SchemaVersion {
		return &ValidationError{
			Stage:  stage,
			Field:  "schema_version",
			Reason: "got " + st.SchemaVersion + ", want " + SchemaVersion,
			Kind:   ErrSchemaVersion,
		}
	}
	caseID := strings.TrimSpace(st.CaseID)
	if caseID == "" || caseID == unknownCaseID {
		return &ValidationError{Stage: stage, Field: "case_id", Reason: "case id is empty or unknown", Kind: ErrRequiredField}
	}
	if st.CreatedAt.IsZero() {
		return &ValidationError{Stage: stage, Field: "created_at", Reason: "timestamp is zero", Kind: ErrRequiredField}
	}
	if st.UpdatedAt.IsZero() {
		return &ValidationError{Stage: stage, Field: "updated_at", Reason: "timestamp is zero", Kind: ErrRequiredField}
	}
	if st.UpdatedAt.Before(st.CreatedAt) {
		return &ValidationError{Stage: stage, Field: "updated_at", Reason: "updated_at precedes created_at", Kind: ErrFieldType}
	}

	for i, obs := range st.Facts.Observations {
		if obs.Confidence < 0 || obs.Confidence > 1 {
			return &ValidationError{
				Stage:  stage,
				Field:  fmt.Sprintf("facts.observations[%d].confidence", i),
				Reason: fmt.Sprintf("confidence %.4f outside [0,1]", obs.Confidence),
				Kind:   ErrFieldType,
			}
		}
		if strings.TrimSpace(obs.Fingerprint) == "" {
			return &ValidationError{
				Stage:  stage,
				Field:  fmt.Sprintf("facts.observations[%d].fingerprint", i),
				Reason: "fingerprint is empty",
				Kind:   ErrRequiredField,
			}
		}
	}
	for stageName, ms := range st.Metrics.StageDurationMS {
		if ms < 0 {
			return &ValidationError{
				Stage:  stage,
				Field:  "metrics.stage_duration_ms." + stageName,
				Reason: fmt.Sprintf("negative duration %d", ms),
				Kind:   ErrFieldType,
			}
		}
	}
	if st.LegalRules.ExecutionMS < 0 {
		return &ValidationError{Stage: stage, Field: "legal_rules.execution_ms", Reason: "negative duration", Kind: ErrFieldType}
	}
	if st.Report != nil {
		if st.Report.GeneratedAt.IsZero() {
			return &ValidationError{Stage: stage, Field: "report.generated_at", Reason: "timestamp is zero", Kind: ErrRequiredField}
		}
		if st.Report.Incomplete && strings.TrimSpace(st.Report.IncompleteReason) == "" {
			return &ValidationError{Stage: stage, Field: "report.incomplete_reason", Reason: "incomplete report without reason", Kind: ErrRequiredField}
		}
	}
	return nil
}

// LogStateSnapshot is a side-effecting observability hook; it never affects
// the validation outcome.
func LogStateSnapshot(logger *slog.Logger, st *AnalysisState, stage string) {
	if logger == nil || st == nil {
		return
	}
	logger.Debug("state_snapshot",
		"stage", stage,
		"case_id", st.CaseID,
		"documents", len(st.Inputs.Documents),
		"timeline_events", len(st.Timeline.Events),
		"observations", len(st.Facts.Observations),
		"risks", len(st.Risks.Heuristic),
		"legal_findings", len(st.Risks.LegalFindings),
		"has_report", st.Report != nil,
	)
}
