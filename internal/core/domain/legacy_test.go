package domain

import (
	"bytes"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func TestFlatRoundTripPreservesContent(t *testing.T) {
	st := validState(t)
	date := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	st.Inputs.Documents = append(st.Inputs.Documents, InputDocument{
		DocID: "d1", DocType: "bank_statement", Content: "2026-02-01;ACME;-12000;rent", Metadata: map[string]string{},
	})
	st.Timeline.Events = append(st.Timeline.Events, TimelineEvent{Date: date, Kind: "payment_out", Description: "rent"})
	st.Facts.Observations = append(st.Facts.Observations, FactObservation{
		Fingerprint: "fp1", FactType: "payment_out", Date: "2026-02-01", AmountEUR: -12000, Counterparty: "ACME", Confidence: 0.9,
	})
	st.Agents.Outputs["findings:r1"] = AgentOutput{Model: "gpt-4", Text: "assessment"}

	back := FromFlat(ToFlat(st))

	if back.CaseID != st.CaseID || back.SchemaVersion != st.SchemaVersion {
		t.Fatalf("identity fields changed")
	}
	if !reflect.DeepEqual(back.Inputs.Documents, st.Inputs.Documents) {
		t.Fatalf("documents changed in round trip")
	}
	if !reflect.DeepEqual(back.Facts.Observations, st.Facts.Observations) {
		t.Fatalf("observations changed in round trip")
	}
	if !reflect.DeepEqual(back.Agents.Outputs, st.Agents.Outputs) {
		t.Fatalf("agent outputs changed in round trip")
	}
	if back.Timeline.EarliestDate == nil || !back.Timeline.EarliestDate.Equal(date) {
		t.Fatalf("earliest date not derived: %v", back.Timeline.EarliestDate)
	}
}

func TestFromFlatSortsTimeline(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	flat := ToFlat(validState(t))
	flat.Timeline = []TimelineEvent{
		{Date: late, Kind: "payment_out"},
		{Date: early, Kind: "payment_in"},
	}

	st := FromFlat(flat)
	if !st.Timeline.Events[0].Date.Equal(early) {
		t.Fatalf("timeline not sorted: %v first", st.Timeline.Events[0].Date)
	}
	if !st.Timeline.LatestDate.Equal(late) {
		t.Fatalf("latest bound wrong: %v", st.Timeline.LatestDate)
	}
}

func TestParseLegacyPayloadDropsUnknownKeys(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	payload := []byte(`{
		"case_id": "case-legacy",
		"company_name": "Alt AG",
		"ancient_field": {"nested": true}
	}`)

	flat, err := ParseLegacyPayload(payload, logger)
	if err != nil {
		t.Fatalf("ParseLegacyPayload: %v", err)
	}
	if flat.CaseID != "case-legacy" || flat.CompanyName != "Alt AG" {
		t.Fatalf("known keys not mapped: %+v", flat)
	}
	if flat.SchemaVersion != SchemaVersion {
		t.Fatalf("legacy state not stamped to current version")
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("legacy_state_key_dropped")) {
		t.Fatalf("dropped key was not logged: %s", logBuf.String())
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("ancient_field")) {
		t.Fatalf("log does not name the dropped key: %s", logBuf.String())
	}
}

func TestParseLegacyPayloadRejectsNonObject(t *testing.T) {
	if _, err := ParseLegacyPayload([]byte(`[1,2,3]`), nil); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
}
