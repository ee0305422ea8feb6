package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
	"github.com/insolvia/case-audit/internal/observability/metrics"
)

// AnalyzeCaseUseCase executes the full audit pipeline for one queued run:
// fresh initial state, the ordered stage sequence under the state contract,
// final state persisted with the run.
type AnalyzeCaseUseCase struct {
	service string
	runner  *Runner
	stages  []Stage
	runs    ports.RunStore
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

func NewAnalyzeCaseUseCase(
	service string,
	runner *Runner,
	stages []Stage,
	runs ports.RunStore,
	pipelineMetrics *metrics.PipelineMetrics,
	logger *slog.Logger,
) *AnalyzeCaseUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeCaseUseCase{
		service: service,
		runner:  runner,
		stages:  stages,
		runs:    runs,
		metrics: pipelineMetrics,
		logger:  logger,
	}
}

func (uc *AnalyzeCaseUseCase) Analyze(ctx context.Context, caseID, runID string) error {
	uc.metrics.StartRun()
	terminal := string(domain.RunFailed)
	defer func() {
		uc.metrics.FinishRun(uc.service, terminal)
	}()

	if err := uc.runs.UpdateStatus(ctx, runID, domain.RunRunning, "", ""); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	uc.logger.Info("analysis_started", "case_id", caseID, "run_id", runID)

	initial, err := domain.NewInitialState(caseID, domain.CaseContext{})
	if err != nil {
		return uc.fail(ctx, runID, caseID, "init", err)
	}

	final, err := uc.runner.RunSequence(ctx, initial, uc.stages)
	if err != nil {
		return uc.fail(ctx, runID, caseID, "pipeline", err)
	}

	status := runOutcome(final)
	terminal = string(status)
	if err := uc.runs.SaveState(ctx, runID, status, final); err != nil {
		return fmt.Errorf("save run state: %w", err)
	}

	uc.logger.Info("analysis_finished",
		"case_id", caseID,
		"run_id", runID,
		"status", string(status),
		"duration_ms", final.Metrics.TotalDurationMS,
	)
	return nil
}

func (uc *AnalyzeCaseUseCase) fail(ctx context.Context, runID, caseID, stage string, cause error) error {
	uc.logger.Error("analysis_failed", "case_id", caseID, "run_id", runID, "stage", stage, "error", cause)
	if err := uc.runs.UpdateStatus(ctx, runID, domain.RunFailed, stage, cause.Error()); err != nil {
		uc.logger.Error("run_status_update_failed", "run_id", runID, "error", err)
	}
	return cause
}

// runOutcome distinguishes a clean run from one that shipped a degraded
// report. Both persist their state; only the status differs.
func runOutcome(st *domain.AnalysisState) domain.RunStatus {
	if st.Report != nil && st.Report.Incomplete {
		return domain.RunIncomplete
	}
	if len(st.Errors.StageErrors) > 0 {
		return domain.RunIncomplete
	}
	return domain.RunCompleted
}
