package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
)

const (
	largePaymentThresholdEUR = 10000
	preFilingWindowDays      = 90
	concentrationShare       = 0.5
)

// RisksStage runs the heuristic, rule-based risk scan over the extracted
// facts and timeline. These are deterministic screens; the legal assessment
// of each finding happens later, model-backed, behind the gate.
type RisksStage struct{}

func NewRisksStage() *RisksStage { return &RisksStage{} }

func (s *RisksStage) Stage() Stage {
	return Stage{Name: "risk_scan", Run: s.run}
}

func (s *RisksStage) run(_ context.Context, st *domain.FlatState) error {
	s.scanLargePayments(st)
	s.scanPreFilingOutflows(st)
	s.scanCounterpartyConcentration(st)
	s.scanMissingDocuments(st)
	return nil
}

func (s *RisksStage) scanLargePayments(st *domain.FlatState) {
	for _, obs := range st.Observations {
		if obs.FactType != "payment_out" {
			continue
		}
		if math.Abs(obs.AmountEUR) >= largePaymentThresholdEUR {
			st.Risks = append(st.Risks, domain.RiskEntry{
				RuleID:   "risk_large_payment",
				Title:    "Large outgoing payment",
				Severity: "medium",
				Detail: fmt.Sprintf(
					"payment of %.2f EUR to %s on %s exceeds %.0f EUR",
					math.Abs(obs.AmountEUR), obs.Counterparty, obs.Date, float64(largePaymentThresholdEUR),
				),
			})
		}
	}
}

// scanPreFilingOutflows flags outgoing payments inside the suspect window
// before the latest known event date.
func (s *RisksStage) scanPreFilingOutflows(st *domain.FlatState) {
	latest := latestEventDate(st.Timeline)
	if latest.IsZero() {
		return
	}
	windowStart := latest.AddDate(0, 0, -preFilingWindowDays)

	var total float64
	count := 0
	for _, obs := range st.Observations {
		if obs.FactType != "payment_out" {
			continue
		}
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			continue
		}
		if !date.Before(windowStart) {
			total += math.Abs(obs.AmountEUR)
			count++
		}
	}
	if count > 0 {
		st.Risks = append(st.Risks, domain.RiskEntry{
			RuleID:   "risk_prefiling_outflows",
			Title:    "Outgoing payments in the suspect window",
			Severity: "high",
			Detail: fmt.Sprintf(
				"%d outgoing payments totalling %.2f EUR within %d days before %s",
				count, total, preFilingWindowDays, latest.Format("2006-01-02"),
			),
		})
	}
}

func (s *RisksStage) scanCounterpartyConcentration(st *domain.FlatState) {
	totals := map[string]float64{}
	var overall float64
	for _, obs := range st.Observations {
		if obs.FactType != "payment_out" {
			continue
		}
		totals[obs.Counterparty] += math.Abs(obs.AmountEUR)
		overall += math.Abs(obs.AmountEUR)
	}
	if overall == 0 {
		return
	}
	for counterparty, total := range totals {
		if total/overall > concentrationShare {
			st.Risks = append(st.Risks, domain.RiskEntry{
				RuleID:   "risk_counterparty_concentration",
				Title:    "Outflow concentration on one counterparty",
				Severity: "medium",
				Detail: fmt.Sprintf(
					"%s received %.2f EUR (%.0f%% of all outflows)",
					counterparty, total, 100*total/overall,
				),
			})
		}
	}
}

func (s *RisksStage) scanMissingDocuments(st *domain.FlatState) {
	for _, docType := range st.MissingDocuments {
		st.Risks = append(st.Risks, domain.RiskEntry{
			RuleID:   "risk_missing_document",
			Title:    "Expected document missing",
			Severity: "low",
			Detail:   "document type not provided: " + docType,
		})
	}
}

func latestEventDate(events []domain.TimelineEvent) time.Time {
	var latest time.Time
	for _, event := range events {
		if event.Date.After(latest) {
			latest = event.Date
		}
	}
	return latest
}
