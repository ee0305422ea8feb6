package usecase

import (
	"context"
	"fmt"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

// EvidenceConfig scopes the gated retrieval calls.
type EvidenceConfig struct {
	EmbedModel  string
	CaseCorpus  string
	LegalCorpus string
	TopK        int
}

// EvidenceStage retrieves supporting chunks for every triggered legal rule
// from both corpora, through the gate. A budget denial degrades the stage
// (recorded as a stage error for the policy downstream) instead of failing
// the run.
type EvidenceStage struct {
	gate ports.CostGate
	cfg  EvidenceConfig
}

func NewEvidenceStage(gate ports.CostGate, cfg EvidenceConfig) *EvidenceStage {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &EvidenceStage{gate: gate, cfg: cfg}
}

func (s *EvidenceStage) Stage() Stage {
	return Stage{Name: "evidence", Run: s.run}
}

func (s *EvidenceStage) run(ctx context.Context, st *domain.FlatState) error {
	for _, rule := range st.RuleResults {
		if !rule.Triggered {
			continue
		}
		query := rule.Norm + " " + rule.Rationale

		caseChunks, err := s.retrieve(ctx, st, s.cfg.CaseCorpus, query)
		if err != nil {
			return err
		}
		st.CaseEvidence = append(st.CaseEvidence, caseChunks...)

		legalChunks, err := s.retrieve(ctx, st, s.cfg.LegalCorpus, query)
		if err != nil {
			return err
		}
		st.LegalEvidence = append(st.LegalEvidence, legalChunks...)
	}
	return nil
}

// retrieve runs one gated retrieval. Budget exhaustion is expected branching,
// not a contract violation: it is recorded and the stage continues degraded.
func (s *EvidenceStage) retrieve(ctx context.Context, st *domain.FlatState, corpus, query string) ([]domain.EvidenceChunk, error) {
	chunks, err := s.gate.Retrieve(ctx, ports.RetrievalCall{
		CaseID:     st.CaseID,
		Phase:      "evidence",
		Corpus:     corpus,
		Query:      query,
		EmbedModel: s.cfg.EmbedModel,
		TopK:       s.cfg.TopK,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrBudgetExceeded) {
			st.StageErrors["evidence"] = "budget exhausted during retrieval"
			return nil, nil
		}
		return nil, fmt.Errorf("retrieve evidence from %s: %w", corpus, err)
	}
	return chunks, nil
}
