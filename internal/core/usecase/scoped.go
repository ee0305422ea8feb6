package usecase

import (
	"context"
	"log/slog"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

// AccessMode controls how the scoped store reacts to cross-case data.
type AccessMode string

const (
	// AccessStrict fails the operation on any cross-case leak.
	AccessStrict AccessMode = "strict"
	// AccessPermissive filters leaked rows out and logs the violation.
	AccessPermissive AccessMode = "permissive"
)

// ScopedFactStore enforces case isolation around a FactStore. Every fact
// flowing in or out is checked against the case it was requested for; a
// mismatch is either a hard access violation or a logged filter depending
// on the configured mode.
type ScopedFactStore struct {
	inner  ports.FactStore
	mode   AccessMode
	logger *slog.Logger
}

func NewScopedFactStore(inner ports.FactStore, mode AccessMode, logger *slog.Logger) *ScopedFactStore {
	if mode != AccessPermissive {
		mode = AccessStrict
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScopedFactStore{inner: inner, mode: mode, logger: logger}
}

func (s *ScopedFactStore) Upsert(ctx context.Context, fact domain.Fact) (string, error) {
	if fact.CaseID == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "upsert fact", domain.ErrRequiredField)
	}
	expected := domain.FactFingerprint(fact.CaseID, fact.FactType, fact.Date, fact.AmountEUR, fact.Counterparty)
	if fact.Fingerprint != expected {
		// A fingerprint minted for another case must never be written
		// under this one.
		return "", &domain.AccessViolationError{
			RequestingCase: fact.CaseID,
			FoundCase:      "",
			Resource:       "fact:" + fact.Fingerprint,
		}
	}
	return s.inner.Upsert(ctx, fact)
}

func (s *ScopedFactStore) ListByCase(ctx context.Context, caseID string) ([]domain.Fact, error) {
	facts, err := s.inner.ListByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	scoped := facts[:0]
	for _, fact := range facts {
		if fact.CaseID == caseID {
			scoped = append(scoped, fact)
			continue
		}
		violation := &domain.AccessViolationError{
			RequestingCase: caseID,
			FoundCase:      fact.CaseID,
			Resource:       "fact:" + fact.Fingerprint,
		}
		if s.mode == AccessStrict {
			return nil, violation
		}
		s.logger.Warn("cross_case_fact_filtered",
			"requesting_case", caseID,
			"found_case", fact.CaseID,
			"fingerprint", fact.Fingerprint,
		)
	}
	return scoped, nil
}
