package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

// FindingsConfig scopes the gated completion calls.
type FindingsConfig struct {
	Model            string
	MaxTokens        int
	MinEvidenceScore float64
}

// FindingsStage turns triggered rules into legal findings. Whether a paid
// model call is allowed for a rule is the call policy's decision; a denial
// produces a degraded, rule-derived finding instead of failing the run.
type FindingsStage struct {
	gate ports.CostGate
	cfg  FindingsConfig
}

func NewFindingsStage(gate ports.CostGate, cfg FindingsConfig) *FindingsStage {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 700
	}
	if cfg.MinEvidenceScore <= 0 {
		cfg.MinEvidenceScore = 0.35
	}
	return &FindingsStage{gate: gate, cfg: cfg}
}

func (s *FindingsStage) Stage() Stage {
	return Stage{Name: "findings", Run: s.run}
}

func (s *FindingsStage) run(ctx context.Context, st *domain.FlatState) error {
	signals, err := s.signals(ctx, st)
	if err != nil {
		return err
	}

	for _, rule := range st.RuleResults {
		if !rule.Triggered {
			continue
		}

		decision := domain.DecideCall(signals)
		if !decision.Allow {
			st.LegalFindings = append(st.LegalFindings, degradedFinding(rule, decision.Reason))
			continue
		}

		prompt := buildFindingPrompt(st, rule)
		completion, err := s.gate.Complete(ctx, ports.CompletionCall{
			CaseID:    st.CaseID,
			Phase:     "findings",
			Model:     s.cfg.Model,
			Prompt:    prompt,
			MaxTokens: s.cfg.MaxTokens,
		})
		if err != nil {
			if domain.IsKind(err, domain.ErrBudgetExceeded) {
				// The budget ran dry mid-stage; remaining rules degrade.
				signals.BudgetAvailable = false
				st.StageErrors["findings"] = "budget exhausted during findings"
				st.LegalFindings = append(st.LegalFindings, degradedFinding(rule, domain.ReasonBudgetExceeded))
				continue
			}
			return fmt.Errorf("generate finding for %s: %w", rule.RuleID, err)
		}

		st.LegalFindings = append(st.LegalFindings, domain.LegalFinding{
			RuleID:     rule.RuleID,
			Norm:       rule.Norm,
			Assessment: strings.TrimSpace(completion.Text),
			Basis:      domain.ReasonOK,
		})
		st.AgentOutputs["findings:"+rule.RuleID] = domain.AgentOutput{
			Model: s.cfg.Model,
			Text:  strings.TrimSpace(completion.Text),
		}
	}
	return nil
}

func (s *FindingsStage) signals(ctx context.Context, st *domain.FlatState) (domain.CallSignals, error) {
	estimate, err := s.gate.EstimateCompletionUSD(s.cfg.Model, 800, s.cfg.MaxTokens)
	if err != nil {
		return domain.CallSignals{}, err
	}
	budgetOK, err := s.gate.CanSpend(ctx, st.CaseID, estimate)
	if err != nil {
		return domain.CallSignals{}, err
	}

	hasEvidence := len(st.CaseEvidence)+len(st.LegalEvidence) > 0
	return domain.CallSignals{
		HasEvidence:          hasEvidence,
		EvidenceInsufficient: hasEvidence && bestScore(st) < s.cfg.MinEvidenceScore,
		NoResponseReason:     st.StageErrors["evidence"],
		BudgetAvailable:      budgetOK,
	}, nil
}

func bestScore(st *domain.FlatState) float64 {
	best := 0.0
	for _, chunk := range st.CaseEvidence {
		if chunk.Score > best {
			best = chunk.Score
		}
	}
	for _, chunk := range st.LegalEvidence {
		if chunk.Score > best {
			best = chunk.Score
		}
	}
	return best
}

func degradedFinding(rule domain.RuleResult, reason string) domain.LegalFinding {
	return domain.LegalFinding{
		RuleID:     rule.RuleID,
		Norm:       rule.Norm,
		Assessment: "rule-based indication only: " + rule.Rationale,
		Basis:      reason,
		Degraded:   true,
	}
}

func buildFindingPrompt(st *domain.FlatState, rule domain.RuleResult) string {
	var b strings.Builder
	b.WriteString("You are assisting an insolvency administrator. Assess the following indication.\n")
	b.WriteString("Norm: " + rule.Norm + "\n")
	b.WriteString("Indication: " + rule.Rationale + "\n\n")

	b.WriteString("Case evidence:\n")
	for i, chunk := range st.CaseEvidence {
		if i >= 5 {
			break
		}
		b.WriteString("- " + chunk.Text + "\n")
	}
	b.WriteString("\nLegal context:\n")
	for i, chunk := range st.LegalEvidence {
		if i >= 5 {
			break
		}
		b.WriteString("- " + chunk.Text + "\n")
	}
	b.WriteString("\nGive a short legal assessment of whether the indication is substantiated.")
	return b.String()
}
