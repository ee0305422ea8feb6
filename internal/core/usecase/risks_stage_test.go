package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
)

func riskIDs(risks []domain.RiskEntry) map[string]int {
	ids := map[string]int{}
	for _, risk := range risks {
		ids[risk.RuleID]++
	}
	return ids
}

func TestRisksStageLargePayment(t *testing.T) {
	st := &domain.FlatState{Observations: []domain.FactObservation{
		{Fingerprint: "fp1", FactType: "payment_out", Date: "2026-02-01", AmountEUR: -10000, Counterparty: "ACME", Confidence: 0.9},
		{Fingerprint: "fp2", FactType: "payment_out", Date: "2026-02-02", AmountEUR: -9999.99, Counterparty: "Beta", Confidence: 0.9},
		{Fingerprint: "fp3", FactType: "payment_in", Date: "2026-02-03", AmountEUR: 50000, Counterparty: "Gamma", Confidence: 0.9},
	}}

	if err := NewRisksStage().Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("risk scan: %v", err)
	}

	// Exactly the 10000 EUR payment crosses the threshold; inflows never do.
	if got := riskIDs(st.Risks)["risk_large_payment"]; got != 1 {
		t.Fatalf("large-payment risks = %d, want 1: %+v", got, st.Risks)
	}
}

func TestRisksStagePreFilingWindow(t *testing.T) {
	latest := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := &domain.FlatState{
		Timeline: []domain.TimelineEvent{
			{Date: latest.AddDate(0, -6, 0), Kind: "payment_out"},
			{Date: latest, Kind: "payment_out"},
		},
		Observations: []domain.FactObservation{
			// Inside the 90-day window before the latest event.
			{Fingerprint: "fp1", FactType: "payment_out", Date: "2026-05-15", AmountEUR: -500, Confidence: 0.9},
			// Well before the window.
			{Fingerprint: "fp2", FactType: "payment_out", Date: "2025-12-01", AmountEUR: -500, Confidence: 0.9},
		},
	}

	if err := NewRisksStage().Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("risk scan: %v", err)
	}
	if riskIDs(st.Risks)["risk_prefiling_outflows"] != 1 {
		t.Fatalf("suspect-window risk not raised: %+v", st.Risks)
	}
}

func TestRisksStageNoTimelineNoWindowRisk(t *testing.T) {
	st := &domain.FlatState{Observations: []domain.FactObservation{
		{Fingerprint: "fp1", FactType: "payment_out", Date: "2026-05-15", AmountEUR: -500, Confidence: 0.9},
	}}

	if err := NewRisksStage().Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("risk scan: %v", err)
	}
	if riskIDs(st.Risks)["risk_prefiling_outflows"] != 0 {
		t.Fatalf("window risk raised without any timeline: %+v", st.Risks)
	}
}

func TestRisksStageCounterpartyConcentration(t *testing.T) {
	st := &domain.FlatState{Observations: []domain.FactObservation{
		{Fingerprint: "fp1", FactType: "payment_out", Date: "2026-02-01", AmountEUR: -6000, Counterparty: "ACME", Confidence: 0.9},
		{Fingerprint: "fp2", FactType: "payment_out", Date: "2026-02-02", AmountEUR: -2000, Counterparty: "Beta", Confidence: 0.9},
		{Fingerprint: "fp3", FactType: "payment_out", Date: "2026-02-03", AmountEUR: -2000, Counterparty: "Gamma", Confidence: 0.9},
	}}

	if err := NewRisksStage().Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("risk scan: %v", err)
	}

	found := false
	for _, risk := range st.Risks {
		if risk.RuleID == "risk_counterparty_concentration" {
			found = true
		}
	}
	if !found {
		t.Fatalf("60%% concentration on one counterparty not flagged: %+v", st.Risks)
	}
}

func TestRisksStageMissingDocuments(t *testing.T) {
	st := &domain.FlatState{MissingDocuments: []string{"bank_statement", "debtor_list"}}

	if err := NewRisksStage().Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("risk scan: %v", err)
	}
	if riskIDs(st.Risks)["risk_missing_document"] != 2 {
		t.Fatalf("missing-document risks wrong: %+v", st.Risks)
	}
}
