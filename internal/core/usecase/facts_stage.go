package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

// FactsStage extracts payment facts from accounting documents and pushes them
// through the deduplicating fact store: the same underlying payment seen in
// two documents collapses onto one fact, with both documents attached as
// evidence and the higher confidence retained.
type FactsStage struct {
	facts ports.FactStore
}

func NewFactsStage(facts ports.FactStore) *FactsStage {
	return &FactsStage{facts: facts}
}

func (s *FactsStage) Stage() Stage {
	return Stage{Name: "facts", Run: s.run}
}

func (s *FactsStage) run(ctx context.Context, st *domain.FlatState) error {
	extracted := 0
	for _, doc := range st.Documents {
		if doc.DocType != "bank_statement" && doc.DocType != "ledger" && doc.DocType != "annual_accounts" {
			continue
		}
		for _, line := range strings.Split(doc.Content, "\n") {
			fact, ok := parseFactLine(st.CaseID, line, doc)
			if !ok {
				continue
			}
			if _, err := s.facts.Upsert(ctx, fact); err != nil {
				return fmt.Errorf("upsert fact: %w", err)
			}
			extracted++
		}
	}
	if extracted == 0 {
		st.Notes = append(st.Notes, "facts: no payment lines recognized in accounting documents")
	}

	stored, err := s.facts.ListByCase(ctx, st.CaseID)
	if err != nil {
		return fmt.Errorf("list facts: %w", err)
	}
	st.Observations = st.Observations[:0]
	for _, fact := range stored {
		st.Observations = append(st.Observations, fact.Observation())
	}
	return nil
}

func parseFactLine(caseID, line string, doc domain.InputDocument) (domain.Fact, bool) {
	fields := strings.Split(strings.TrimSpace(line), ";")
	if len(fields) < 3 {
		return domain.Fact{}, false
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(fields[0]))
	if err != nil {
		return domain.Fact{}, false
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil || amount == 0 {
		return domain.Fact{}, false
	}

	counterparty := strings.TrimSpace(fields[1])
	factType := "payment_in"
	if amount < 0 {
		factType = "payment_out"
	}
	dateStr := date.Format("2006-01-02")

	// Parsed bank lines carry a fixed confidence; classifier-derived facts
	// would score lower and never win a dedup collision against them.
	fact := domain.Fact{
		CaseID:       caseID,
		FactType:     factType,
		Date:         dateStr,
		AmountEUR:    amount,
		Counterparty: counterparty,
		Confidence:   0.9,
		Fingerprint:  domain.FactFingerprint(caseID, factType, dateStr, amount, counterparty),
		Evidence: []domain.FactEvidence{
			{DocumentID: doc.DocID, Excerpt: strings.TrimSpace(line)},
		},
	}
	return fact, true
}
