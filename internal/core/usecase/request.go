package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

// StartAnalysisUseCase queues a new pipeline run for a case: a run row in
// queued status plus a message for the workers.
type StartAnalysisUseCase struct {
	runs   ports.RunStore
	queue  ports.MessageQueue
	logger *slog.Logger
	now    func() time.Time
}

func NewStartAnalysisUseCase(runs ports.RunStore, queue ports.MessageQueue, logger *slog.Logger) *StartAnalysisUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &StartAnalysisUseCase{runs: runs, queue: queue, logger: logger, now: time.Now}
}

func (uc *StartAnalysisUseCase) Start(ctx context.Context, caseID string) (*domain.CaseRun, error) {
	if caseID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "start analysis", fmt.Errorf("case id is empty"))
	}

	now := uc.now().UTC()
	run := &domain.CaseRun{
		ID:        uuid.NewString(),
		CaseID:    caseID,
		Status:    domain.RunQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := uc.queue.PublishAnalysisRequested(ctx, caseID, run.ID); err != nil {
		if updErr := uc.runs.UpdateStatus(ctx, run.ID, domain.RunFailed, "enqueue", err.Error()); updErr != nil {
			uc.logger.Error("run_status_update_failed", "run_id", run.ID, "error", updErr)
		}
		return nil, fmt.Errorf("enqueue run: %w", err)
	}

	uc.logger.Info("analysis_queued", "case_id", caseID, "run_id", run.ID)
	return run, nil
}

// RunReadUseCase is the thin read model over the run store.
type RunReadUseCase struct {
	runs ports.RunStore
}

func NewRunReadUseCase(runs ports.RunStore) *RunReadUseCase {
	return &RunReadUseCase{runs: runs}
}

func (uc *RunReadUseCase) GetRun(ctx context.Context, runID string) (*domain.CaseRun, error) {
	return uc.runs.GetByID(ctx, runID)
}

func (uc *RunReadUseCase) LatestRun(ctx context.Context, caseID string) (*domain.CaseRun, error) {
	return uc.runs.LatestByCase(ctx, caseID)
}
