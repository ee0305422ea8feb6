package usecase

import (
	"context"
	"testing"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// dedupFactStore mimics fingerprint-keyed upsert semantics: collisions merge
// evidence and keep the higher confidence.
type dedupFactStore struct {
	byFingerprint map[string]*domain.Fact
	order         []string
}

func newDedupFactStore() *dedupFactStore {
	return &dedupFactStore{byFingerprint: map[string]*domain.Fact{}}
}

func (s *dedupFactStore) Upsert(_ context.Context, fact domain.Fact) (string, error) {
	if existing, ok := s.byFingerprint[fact.Fingerprint]; ok {
		if fact.Confidence > existing.Confidence {
			existing.Confidence = fact.Confidence
		}
		existing.Evidence = append(existing.Evidence, fact.Evidence...)
		return existing.ID, nil
	}
	fact.ID = "fact-" + fact.Fingerprint[:8]
	s.byFingerprint[fact.Fingerprint] = &fact
	s.order = append(s.order, fact.Fingerprint)
	return fact.ID, nil
}

func (s *dedupFactStore) ListByCase(_ context.Context, caseID string) ([]domain.Fact, error) {
	var facts []domain.Fact
	for _, fp := range s.order {
		if s.byFingerprint[fp].CaseID == caseID {
			facts = append(facts, *s.byFingerprint[fp])
		}
	}
	return facts, nil
}

func TestFactsStageExtractsPaymentLines(t *testing.T) {
	store := newDedupFactStore()
	stage := NewFactsStage(store)

	st := &domain.FlatState{
		CaseID: "case-1",
		Documents: []domain.InputDocument{
			{DocID: "d1", DocType: "bank_statement", Content: "2026-02-01;ACME GmbH;-12000.00;rent\nnot a payment line\n2026-02-03;Kunde AG;4500.00;invoice"},
			{DocID: "d2", DocType: "correspondence", Content: "2026-02-04;Ignored;-999;letters are not accounting data"},
		},
	}

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("facts: %v", err)
	}
	if len(st.Observations) != 2 {
		t.Fatalf("observations = %d, want 2: %+v", len(st.Observations), st.Observations)
	}
	if st.Observations[0].FactType != "payment_out" || st.Observations[1].FactType != "payment_in" {
		t.Fatalf("fact types wrong: %+v", st.Observations)
	}
}

func TestFactsStageDeduplicatesAcrossDocuments(t *testing.T) {
	store := newDedupFactStore()
	stage := NewFactsStage(store)

	// The same payment appears in the bank statement and the ledger export.
	st := &domain.FlatState{
		CaseID: "case-1",
		Documents: []domain.InputDocument{
			{DocID: "d1", DocType: "bank_statement", Content: "2026-02-01;ACME GmbH;-12000.00;rent"},
			{DocID: "d2", DocType: "ledger", Content: "2026-02-01;acme gmbh;-12000.00;rent Q1"},
		},
	}

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("facts: %v", err)
	}
	if len(st.Observations) != 1 {
		t.Fatalf("observations = %d, want 1 deduplicated fact", len(st.Observations))
	}
	if len(st.Observations[0].Evidence) != 2 {
		t.Fatalf("evidence = %d, want both source documents", len(st.Observations[0].Evidence))
	}
}

func TestFactsStageNotesEmptyExtraction(t *testing.T) {
	stage := NewFactsStage(newDedupFactStore())
	st := &domain.FlatState{
		CaseID: "case-1",
		Documents: []domain.InputDocument{
			{DocID: "d1", DocType: "bank_statement", Content: "no structured lines here"},
		},
	}

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("facts: %v", err)
	}
	if len(st.Notes) == 0 {
		t.Fatalf("empty extraction not noted")
	}
}
