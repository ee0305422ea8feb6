package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// LegalRulesStage is the deterministic rule evaluator: it maps heuristic risk
// signals onto candidate insolvency-law norms. No model call happens here;
// results are inputs to the gated evidence and findings stages.
type LegalRulesStage struct{}

func NewLegalRulesStage() *LegalRulesStage { return &LegalRulesStage{} }

func (s *LegalRulesStage) Stage() Stage {
	return Stage{Name: "legal_rules", Run: s.run}
}

func (s *LegalRulesStage) run(_ context.Context, st *domain.FlatState) error {
	start := time.Now()

	riskSeen := map[string]int{}
	for _, risk := range st.Risks {
		riskSeen[risk.RuleID]++
	}

	st.RuleResults = append(st.RuleResults,
		evaluateAvoidanceRule(riskSeen),
		evaluatePaymentProhibitionRule(riskSeen),
		evaluateFilingDelayRule(st, riskSeen),
	)

	st.RuleExecutionMS = time.Since(start).Milliseconds()
	return nil
}

func evaluateAvoidanceRule(riskSeen map[string]int) domain.RuleResult {
	triggered := riskSeen["risk_prefiling_outflows"] > 0
	rationale := "no outgoing payments inside the suspect window"
	if triggered {
		rationale = "outgoing payments inside the suspect window indicate avoidable transactions"
	}
	return domain.RuleResult{
		RuleID:    "rule_avoidance",
		Norm:      "InsO §§129, 133",
		Triggered: triggered,
		Rationale: rationale,
	}
}

func evaluatePaymentProhibitionRule(riskSeen map[string]int) domain.RuleResult {
	triggered := riskSeen["risk_large_payment"] > 0 && riskSeen["risk_prefiling_outflows"] > 0
	rationale := "no large payments after presumed maturity"
	if triggered {
		rationale = fmt.Sprintf(
			"%d large payments coincide with the suspect window; payments after maturity are prohibited",
			riskSeen["risk_large_payment"],
		)
	}
	return domain.RuleResult{
		RuleID:    "rule_payment_prohibition",
		Norm:      "InsO §15b",
		Triggered: triggered,
		Rationale: rationale,
	}
}

func evaluateFilingDelayRule(st *domain.FlatState, riskSeen map[string]int) domain.RuleResult {
	span := timelineSpanDays(st.Timeline)
	triggered := span > 21 && riskSeen["risk_prefiling_outflows"] > 0
	rationale := "no indication of a delayed filing"
	if triggered {
		rationale = fmt.Sprintf(
			"activity spans %d days with suspect-window outflows; the three-week filing duty may be breached",
			span,
		)
	}
	return domain.RuleResult{
		RuleID:    "rule_filing_delay",
		Norm:      "InsO §15a",
		Triggered: triggered,
		Rationale: rationale,
	}
}

func timelineSpanDays(events []domain.TimelineEvent) int {
	if len(events) == 0 {
		return 0
	}
	earliest := events[0].Date
	latest := events[0].Date
	for _, event := range events[1:] {
		if event.Date.Before(earliest) {
			earliest = event.Date
		}
		if event.Date.After(latest) {
			latest = event.Date
		}
	}
	return int(latest.Sub(earliest).Hours() / 24)
}
