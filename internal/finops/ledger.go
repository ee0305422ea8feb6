package finops

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

// Ledger enforces the hard per-case spend ceiling and keeps the auditable
// entry history. Accounts are created lazily with the default ceiling.
//
// Concurrent check-then-spend is handled with reservations: Reserve counts the
// estimated amount against the ceiling under the per-case lock, so two callers
// racing for the last dollar cannot both pass. A failed provider call releases
// its reservation and leaves spent and the entry history untouched; Commit is
// the only path that moves spent.
type Ledger struct {
	mu             sync.Mutex
	accounts       map[string]*account
	defaultCeiling float64
	store          ports.LedgerStore
	logger         *slog.Logger
}

type account struct {
	mu       sync.Mutex
	budget   domain.CaseBudget
	reserved float64
	loaded   bool
}

// Reservation is an outstanding budget hold between the pre-call check and
// the post-call recording.
type Reservation struct {
	ID        string
	CaseID    string
	Phase     string
	AmountUSD float64

	settled bool
}

func NewLedger(defaultCeilingUSD float64, store ports.LedgerStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		accounts:       make(map[string]*account),
		defaultCeiling: defaultCeilingUSD,
		store:          store,
		logger:         logger,
	}
}

func (l *Ledger) account(caseID string) *account {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[caseID]
	if !ok {
		acc = &account{
			budget: domain.CaseBudget{
				CaseID:     caseID,
				CeilingUSD: l.defaultCeiling,
				Entries:    []domain.LedgerEntry{},
			},
		}
		l.accounts[caseID] = acc
	}
	return acc
}

// ensureLoaded replays the durable entry history into a fresh account.
// Callers hold acc.mu.
func (l *Ledger) ensureLoaded(ctx context.Context, acc *account) error {
	if acc.loaded {
		return nil
	}
	acc.loaded = true
	if l.store == nil {
		return nil
	}

	entries, err := l.store.ListEntries(ctx, acc.budget.CaseID)
	if err != nil {
		acc.loaded = false
		return fmt.Errorf("load ledger entries: %w", err)
	}
	for _, entry := range entries {
		acc.budget.Entries = append(acc.budget.Entries, entry)
		acc.budget.SpentUSD += entry.CostUSD
	}
	return nil
}

// GetBudget returns a copy of the case budget, lazily initialized to the
// default ceiling.
func (l *Ledger) GetBudget(ctx context.Context, caseID string) (domain.CaseBudget, error) {
	acc := l.account(caseID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if err := l.ensureLoaded(ctx, acc); err != nil {
		return domain.CaseBudget{}, err
	}
	budget := acc.budget
	budget.Entries = append([]domain.LedgerEntry{}, acc.budget.Entries...)
	return budget, nil
}

// CanSpend is the pure ceiling predicate: spent + amount <= ceiling.
func (l *Ledger) CanSpend(ctx context.Context, caseID string, amountUSD float64) (bool, error) {
	acc := l.account(caseID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if err := l.ensureLoaded(ctx, acc); err != nil {
		return false, err
	}
	return acc.budget.CanSpend(amountUSD), nil
}

// Reserve holds the estimated amount against the ceiling. Outstanding
// reservations count, so concurrent callers cannot jointly overshoot.
func (l *Ledger) Reserve(ctx context.Context, caseID, phase string, amountUSD float64) (*Reservation, error) {
	acc := l.account(caseID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if err := l.ensureLoaded(ctx, acc); err != nil {
		return nil, err
	}
	if !acc.budget.CanSpend(acc.reserved + amountUSD) {
		remaining := acc.budget.CeilingUSD - acc.budget.SpentUSD - acc.reserved
		if remaining < 0 {
			remaining = 0
		}
		return nil, &domain.BudgetExceededError{
			CaseID:       caseID,
			Phase:        phase,
			RequiredUSD:  amountUSD,
			RemainingUSD: remaining,
		}
	}

	acc.reserved += amountUSD
	return &Reservation{
		ID:        uuid.NewString(),
		CaseID:    caseID,
		Phase:     phase,
		AmountUSD: amountUSD,
	}, nil
}

// Release drops a reservation without recording anything. Safe to call after
// Commit; a settled reservation is ignored.
func (l *Ledger) Release(res *Reservation) {
	if res == nil || res.settled {
		return
	}
	acc := l.account(res.CaseID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if res.settled {
		return
	}
	res.settled = true
	acc.reserved -= res.AmountUSD
	if acc.reserved < 0 {
		acc.reserved = 0
	}
}

// Commit settles a reservation with the actual cost: the entry is appended,
// spent increases by the entry cost and the durable store is mirrored.
func (l *Ledger) Commit(ctx context.Context, res *Reservation, entry domain.LedgerEntry) error {
	if res == nil {
		return domain.WrapError(domain.ErrInvalidInput, "commit ledger entry", fmt.Errorf("nil reservation"))
	}
	acc := l.account(res.CaseID)
	acc.mu.Lock()

	if res.settled {
		acc.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidInput, "commit ledger entry", fmt.Errorf("reservation already settled"))
	}
	res.settled = true
	acc.reserved -= res.AmountUSD
	if acc.reserved < 0 {
		acc.reserved = 0
	}
	l.appendLocked(acc, &entry)
	acc.mu.Unlock()

	return l.mirror(ctx, res.CaseID, entry)
}

// RecordEntry appends an entry outside the reservation protocol, for callers
// that checked CanSpend immediately before. This and Commit are the only
// paths that move spent.
func (l *Ledger) RecordEntry(ctx context.Context, caseID string, entry domain.LedgerEntry) error {
	acc := l.account(caseID)
	acc.mu.Lock()
	if err := l.ensureLoaded(ctx, acc); err != nil {
		acc.mu.Unlock()
		return err
	}
	l.appendLocked(acc, &entry)
	acc.mu.Unlock()

	return l.mirror(ctx, caseID, entry)
}

func (l *Ledger) appendLocked(acc *account, entry *domain.LedgerEntry) {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	if entry.TraceID == "" {
		entry.TraceID = uuid.NewString()
	}
	acc.budget.Entries = append(acc.budget.Entries, *entry)
	acc.budget.SpentUSD += entry.CostUSD
}

// mirror writes the entry to the durable store. The in-memory ledger already
// holds the entry; a mirror failure is surfaced, not rolled back.
func (l *Ledger) mirror(ctx context.Context, caseID string, entry domain.LedgerEntry) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.AppendEntry(ctx, caseID, entry); err != nil {
		l.logger.Error("ledger_mirror_failed", "case_id", caseID, "trace_id", entry.TraceID, "error", err)
		return fmt.Errorf("mirror ledger entry: %w", err)
	}
	return nil
}
