package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/insolvia/case-audit/internal/core/domain"
)

func TestEvidenceStageRetrievesBothCorpora(t *testing.T) {
	gate := &fakeGate{chunks: []domain.EvidenceChunk{{ChunkID: "c1", Score: 0.8}}}
	stage := NewEvidenceStage(gate, EvidenceConfig{
		EmbedModel: "embed-model", CaseCorpus: "case_documents", LegalCorpus: "legal_corpus",
	})
	st := triggeredState()
	st.CaseEvidence = nil
	st.LegalEvidence = nil

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("evidence: %v", err)
	}

	// One triggered rule, two corpora.
	if len(gate.retrievals) != 2 {
		t.Fatalf("retrievals = %d, want 2", len(gate.retrievals))
	}
	corpora := map[string]bool{}
	for _, call := range gate.retrievals {
		corpora[call.Corpus] = true
		if call.Phase != "evidence" || call.CaseID != "case-1" {
			t.Fatalf("retrieval attribution wrong: %+v", call)
		}
	}
	if !corpora["case_documents"] || !corpora["legal_corpus"] {
		t.Fatalf("corpora queried: %+v", corpora)
	}
	if len(st.CaseEvidence) != 1 || len(st.LegalEvidence) != 1 {
		t.Fatalf("chunks not recorded: case=%d legal=%d", len(st.CaseEvidence), len(st.LegalEvidence))
	}
}

func TestEvidenceStageSkipsUntriggeredRules(t *testing.T) {
	gate := &fakeGate{}
	stage := NewEvidenceStage(gate, EvidenceConfig{
		EmbedModel: "embed-model", CaseCorpus: "case_documents", LegalCorpus: "legal_corpus",
	})
	st := triggeredState()
	st.RuleResults[0].Triggered = false

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if len(gate.retrievals) != 0 {
		t.Fatalf("untriggered rules caused retrievals: %+v", gate.retrievals)
	}
}

func TestEvidenceStageBudgetDenialDegrades(t *testing.T) {
	gate := &fakeGate{retrieveErr: &domain.BudgetExceededError{CaseID: "case-1", Phase: "evidence"}}
	stage := NewEvidenceStage(gate, EvidenceConfig{
		EmbedModel: "embed-model", CaseCorpus: "case_documents", LegalCorpus: "legal_corpus",
	})
	st := triggeredState()
	st.CaseEvidence = nil
	st.LegalEvidence = nil

	if err := stage.Stage().Run(context.Background(), st); err != nil {
		t.Fatalf("budget denial must degrade, got %v", err)
	}
	if st.StageErrors["evidence"] == "" {
		t.Fatalf("degradation not recorded as stage error")
	}
	if len(st.CaseEvidence) != 0 {
		t.Fatalf("denied retrieval produced evidence")
	}
}

func TestEvidenceStageProviderFailureIsFatal(t *testing.T) {
	gate := &fakeGate{retrieveErr: errors.New("vector store down")}
	stage := NewEvidenceStage(gate, EvidenceConfig{
		EmbedModel: "embed-model", CaseCorpus: "case_documents", LegalCorpus: "legal_corpus",
	})

	if err := stage.Stage().Run(context.Background(), triggeredState()); err == nil {
		t.Fatalf("provider failure must fail the stage")
	}
}
