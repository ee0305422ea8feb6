package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

// ReportConfig scopes the gated summary call.
type ReportConfig struct {
	Model     string
	MaxTokens int
}

// ReportStage composes the administrator report. The body is assembled
// locally from the accumulated findings; only the executive summary is a
// paid model call. If the budget is gone by now the report still ships,
// marked incomplete with a local fallback summary.
type ReportStage struct {
	gate ports.CostGate
	cfg  ReportConfig
	now  func() time.Time
}

func NewReportStage(gate ports.CostGate, cfg ReportConfig) *ReportStage {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	return &ReportStage{gate: gate, cfg: cfg, now: time.Now}
}

func (s *ReportStage) Stage() Stage {
	return Stage{Name: "report", Run: s.run}
}

func (s *ReportStage) run(ctx context.Context, st *domain.FlatState) error {
	body := composeReportBody(st)

	report := &domain.Report{
		Title:       reportTitle(st),
		Body:        body,
		GeneratedAt: s.now().UTC(),
	}

	summary, err := s.summarize(ctx, st, body)
	switch {
	case err == nil:
		report.Summary = summary
	case domain.IsKind(err, domain.ErrBudgetExceeded):
		report.Summary = fallbackSummary(st)
		report.Incomplete = true
		report.IncompleteReason = "budget exhausted"
		st.StageErrors["report"] = "summary degraded: budget exhausted"
	default:
		return fmt.Errorf("summarize report: %w", err)
	}

	st.Report = report
	return nil
}

func (s *ReportStage) summarize(ctx context.Context, st *domain.FlatState, body string) (string, error) {
	completion, err := s.gate.Complete(ctx, ports.CompletionCall{
		CaseID: st.CaseID,
		Phase:  "report",
		Model:  s.cfg.Model,
		Prompt: "Summarize the following insolvency audit report in a short executive paragraph " +
			"for the administrator. Mention the triggered norms and overall risk picture.\n\n" + body,
		MaxTokens: s.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion.Text), nil
}

func reportTitle(st *domain.FlatState) string {
	if st.CompanyName != "" {
		return "Insolvency audit report: " + st.CompanyName
	}
	return "Insolvency audit report: case " + st.CaseID
}

func composeReportBody(st *domain.FlatState) string {
	var b strings.Builder

	b.WriteString("## Case\n")
	fmt.Fprintf(&b, "Case %s", st.CaseID)
	if st.CompanyName != "" {
		fmt.Fprintf(&b, ", %s (%s)", st.CompanyName, st.LegalForm)
	}
	fmt.Fprintf(&b, ". Documents analyzed: %d.", len(st.Documents))
	if len(st.MissingDocuments) > 0 {
		fmt.Fprintf(&b, " Missing: %s.", strings.Join(st.MissingDocuments, ", "))
	}
	b.WriteString("\n\n## Heuristic risks\n")
	if len(st.Risks) == 0 {
		b.WriteString("No heuristic risks detected.\n")
	}
	for _, risk := range st.Risks {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", risk.Severity, risk.Title, risk.Detail)
	}

	b.WriteString("\n## Rule evaluation\n")
	for _, rule := range st.RuleResults {
		status := "not triggered"
		if rule.Triggered {
			status = "TRIGGERED"
		}
		fmt.Fprintf(&b, "- %s (%s): %s. %s\n", rule.RuleID, rule.Norm, status, rule.Rationale)
	}

	b.WriteString("\n## Legal findings\n")
	if len(st.LegalFindings) == 0 {
		b.WriteString("No findings.\n")
	}
	for _, finding := range st.LegalFindings {
		marker := ""
		if finding.Degraded {
			marker = " (degraded: " + finding.Basis + ")"
		}
		fmt.Fprintf(&b, "- %s (%s)%s: %s\n", finding.RuleID, finding.Norm, marker, finding.Assessment)
	}
	return b.String()
}

// fallbackSummary is the zero-cost summary used when the gate denies the call.
func fallbackSummary(st *domain.FlatState) string {
	triggered := 0
	for _, rule := range st.RuleResults {
		if rule.Triggered {
			triggered++
		}
	}
	return fmt.Sprintf(
		"Automated summary unavailable. %d heuristic risks recorded, %d legal rules triggered, %d findings produced.",
		len(st.Risks), triggered, len(st.LegalFindings),
	)
}
