package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

type fakeGate struct {
	completions  []ports.CompletionCall
	retrievals   []ports.RetrievalCall
	completeText string
	completeErrs []error
	retrieveErr  error
	chunks       []domain.EvidenceChunk
	canSpend     bool
	canSpendErr  error
	estimateUSD  float64
}

func (g *fakeGate) Complete(_ context.Context, call ports.CompletionCall) (domain.Completion, error) {
	g.completions = append(g.completions, call)
	if len(g.completeErrs) > 0 {
		err := g.completeErrs[0]
		g.completeErrs = g.completeErrs[1:]
		if err != nil {
			return domain.Completion{}, err
		}
	}
	return domain.Completion{Text: g.completeText, InputTokens: 100, OutputTokens: 50}, nil
}

func (g *fakeGate) Retrieve(_ context.Context, call ports.RetrievalCall) ([]domain.EvidenceChunk, error) {
	g.retrievals = append(g.retrievals, call)
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	return g.chunks, nil
}

func (g *fakeGate) CanSpend(_ context.Context, _ string, _ float64) (bool, error) {
	return g.canSpend, g.canSpendErr
}

func (g *fakeGate) EstimateCompletionUSD(_ string, _, _ int) (float64, error) {
	return g.estimateUSD, nil
}

func triggeredState() *domain.FlatState {
	return &domain.FlatState{
		CaseID: "case-1",
		RuleResults: []domain.RuleResult{
			{RuleID: "rule_avoidance", Norm: "InsO §§129, 133", Triggered: true, Rationale: "suspect-window outflows"},
			{RuleID: "rule_filing_delay", Norm: "InsO §15a", Triggered: false, Rationale: "no indication"},
		},
		CaseEvidence:  []domain.EvidenceChunk{{ChunkID: "c1", Score: 0.8, Text: "bank excerpt"}},
		LegalEvidence: []domain.EvidenceChunk{{ChunkID: "l1", Score: 0.7, Text: "norm text"}},
		AgentOutputs:  map[string]domain.AgentOutput{},
		StageErrors:   map[string]string{},
	}
}

func TestFindingsStageGeneratesForTriggeredRules(t *testing.T) {
	gate := &fakeGate{canSpend: true, completeText: "substantiated indication"}
	stage := NewFindingsStage(gate, FindingsConfig{Model: "gen-model"})
	st := triggeredState()

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("findings: %v", err)
	}

	if len(st.LegalFindings) != 1 {
		t.Fatalf("findings = %d, want 1 (only the triggered rule)", len(st.LegalFindings))
	}
	finding := st.LegalFindings[0]
	if finding.Degraded || finding.Basis != domain.ReasonOK {
		t.Fatalf("clean call produced a degraded finding: %+v", finding)
	}
	if finding.Assessment != "substantiated indication" {
		t.Fatalf("assessment = %q", finding.Assessment)
	}
	if _, ok := st.AgentOutputs["findings:rule_avoidance"]; !ok {
		t.Fatalf("agent output not recorded: %+v", st.AgentOutputs)
	}
	if len(gate.completions) != 1 || gate.completions[0].Phase != "findings" {
		t.Fatalf("gate calls: %+v", gate.completions)
	}
}

func TestFindingsStageDegradesWithoutBudget(t *testing.T) {
	gate := &fakeGate{canSpend: false}
	stage := NewFindingsStage(gate, FindingsConfig{Model: "gen-model"})
	st := triggeredState()

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("findings: %v", err)
	}
	if len(gate.completions) != 0 {
		t.Fatalf("denied stage still called the model")
	}
	finding := st.LegalFindings[0]
	if !finding.Degraded || finding.Basis != domain.ReasonBudgetExceeded {
		t.Fatalf("expected budget-degraded finding: %+v", finding)
	}
	if !strings.HasPrefix(finding.Assessment, "rule-based indication only:") {
		t.Fatalf("degraded assessment not rule-derived: %q", finding.Assessment)
	}
}

func TestFindingsStageDegradesOnWeakEvidence(t *testing.T) {
	gate := &fakeGate{canSpend: true}
	stage := NewFindingsStage(gate, FindingsConfig{Model: "gen-model", MinEvidenceScore: 0.5})
	st := triggeredState()
	st.CaseEvidence[0].Score = 0.2
	st.LegalEvidence[0].Score = 0.1

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("findings: %v", err)
	}
	finding := st.LegalFindings[0]
	if !finding.Degraded || finding.Basis != domain.ReasonInsufficientEvidence {
		t.Fatalf("expected evidence-degraded finding: %+v", finding)
	}
}

func TestFindingsStageMidStageExhaustionDegradesRemainder(t *testing.T) {
	gate := &fakeGate{
		canSpend:     true,
		completeText: "substantiated",
		completeErrs: []error{nil, &domain.BudgetExceededError{CaseID: "case-1", Phase: "findings"}},
	}
	stage := NewFindingsStage(gate, FindingsConfig{Model: "gen-model"})

	st := triggeredState()
	st.RuleResults = []domain.RuleResult{
		{RuleID: "rule_avoidance", Norm: "InsO §§129, 133", Triggered: true, Rationale: "r1"},
		{RuleID: "rule_payment_prohibition", Norm: "InsO §15b", Triggered: true, Rationale: "r2"},
		{RuleID: "rule_filing_delay", Norm: "InsO §15a", Triggered: true, Rationale: "r3"},
	}

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("findings: %v", err)
	}
	if len(st.LegalFindings) != 3 {
		t.Fatalf("findings = %d, want 3", len(st.LegalFindings))
	}
	if st.LegalFindings[0].Degraded {
		t.Fatalf("first finding degraded despite successful call")
	}
	if !st.LegalFindings[1].Degraded || !st.LegalFindings[2].Degraded {
		t.Fatalf("findings after exhaustion not degraded: %+v", st.LegalFindings)
	}
	if st.StageErrors["findings"] == "" {
		t.Fatalf("mid-stage exhaustion not recorded as stage error")
	}
	// The third rule must not reach the provider again.
	if len(gate.completions) != 2 {
		t.Fatalf("gate calls = %d, want 2", len(gate.completions))
	}
}

func TestFindingsStageEvidenceFailurePropagatesAsNoResponse(t *testing.T) {
	gate := &fakeGate{canSpend: true}
	stage := NewFindingsStage(gate, FindingsConfig{Model: "gen-model"})
	st := triggeredState()
	st.StageErrors["evidence"] = "budget exhausted during retrieval"

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("findings: %v", err)
	}
	finding := st.LegalFindings[0]
	if !finding.Degraded || !strings.HasPrefix(finding.Basis, "NO_RESPONSE:") {
		t.Fatalf("expected no-response degradation: %+v", finding)
	}
}
