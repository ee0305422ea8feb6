package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/insolvia/case-audit/internal/core/domain"
)

func reportState() *domain.FlatState {
	return &domain.FlatState{
		CaseID:      "case-1",
		CompanyName: "Muster GmbH",
		LegalForm:   "GmbH",
		Risks: []domain.RiskEntry{
			{RuleID: "risk_large_payment", Title: "Large outgoing payment", Severity: "medium", Detail: "12000 EUR"},
		},
		RuleResults: []domain.RuleResult{
			{RuleID: "rule_avoidance", Norm: "InsO §§129, 133", Triggered: true, Rationale: "suspect-window outflows"},
		},
		LegalFindings: []domain.LegalFinding{
			{RuleID: "rule_avoidance", Norm: "InsO §§129, 133", Assessment: "substantiated", Basis: domain.ReasonOK},
		},
		StageErrors: map[string]string{},
	}
}

func TestReportStageComposesBodyAndSummary(t *testing.T) {
	gate := &fakeGate{canSpend: true, completeText: "executive summary"}
	stage := NewReportStage(gate, ReportConfig{Model: "gen-model"})
	st := reportState()

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("report: %v", err)
	}
	if st.Report == nil {
		t.Fatalf("no report produced")
	}
	if st.Report.Incomplete {
		t.Fatalf("clean run marked incomplete: %+v", st.Report)
	}
	if st.Report.Summary != "executive summary" {
		t.Fatalf("summary = %q", st.Report.Summary)
	}
	if !strings.Contains(st.Report.Title, "Muster GmbH") {
		t.Fatalf("title = %q", st.Report.Title)
	}
	for _, section := range []string{"## Case", "## Heuristic risks", "## Rule evaluation", "## Legal findings"} {
		if !strings.Contains(st.Report.Body, section) {
			t.Fatalf("body missing section %q", section)
		}
	}
	if !strings.Contains(st.Report.Body, "TRIGGERED") {
		t.Fatalf("triggered rule not marked in body")
	}
	if st.Report.GeneratedAt.IsZero() {
		t.Fatalf("generated_at not stamped")
	}
}

func TestReportStageShipsDegradedOnBudgetDenial(t *testing.T) {
	gate := &fakeGate{completeErrs: []error{&domain.BudgetExceededError{CaseID: "case-1", Phase: "report"}}}
	stage := NewReportStage(gate, ReportConfig{Model: "gen-model"})
	st := reportState()

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("report must ship degraded, got %v", err)
	}
	if st.Report == nil || !st.Report.Incomplete {
		t.Fatalf("budget denial did not mark the report incomplete: %+v", st.Report)
	}
	if st.Report.IncompleteReason == "" {
		t.Fatalf("incomplete report without reason")
	}
	if !strings.Contains(st.Report.Summary, "1 legal rules triggered") {
		t.Fatalf("fallback summary wrong: %q", st.Report.Summary)
	}
	if st.StageErrors["report"] == "" {
		t.Fatalf("degradation not recorded as stage error")
	}
}

func TestReportStageProviderFailureIsFatal(t *testing.T) {
	gate := &fakeGate{completeErrs: []error{errors.New("upstream 500")}}
	stage := NewReportStage(gate, ReportConfig{Model: "gen-model"})

	if err := stage.Stage().Run(context.Background(), reportState()); err == nil {
		t.Fatalf("provider failure must fail the stage")
	}
}
