package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/observability/metrics"
)

// StageFunc is one pipeline stage operating on the legacy flat view. A stage
// mutates only the fields it owns; untouched fields pass through unchanged.
// Business misses are data (empty slices, notes, stage errors), not errors;
// a returned error is fatal to the run.
type StageFunc func(ctx context.Context, st *domain.FlatState) error

type Stage struct {
	Name string
	Run  StageFunc
}

// Runner makes pre/post validation unavoidable for every pipeline stage:
// validate the incoming state, convert to the flat view, execute, re-stamp
// the immutable fields, migrate back and validate the result. A stage that
// corrupts the contract halts the run; no downstream stage ever observes a
// corrupted state.
type Runner struct {
	service string
	logger  *slog.Logger
	metrics *metrics.PipelineMetrics
}

func NewRunner(service string, logger *slog.Logger, pipelineMetrics *metrics.PipelineMetrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		service: service,
		logger:  logger,
		metrics: pipelineMetrics,
	}
}

// RunStage executes one stage under the state contract.
func (r *Runner) RunStage(ctx context.Context, stage string, st *domain.AnalysisState, fn StageFunc) (*domain.AnalysisState, error) {
	pre, err := domain.ValidateState(st, "pre:"+stage, r.logger)
	if err != nil {
		return nil, err
	}
	domain.LogStateSnapshot(r.logger, pre, "pre:"+stage)

	flat := domain.ToFlat(pre)
	start := time.Now()

	if err := fn(ctx, flat); err != nil {
		r.metrics.ObserveStage(r.service, stage, time.Since(start), err)
		return nil, fmt.Errorf("stage %s: %w", stage, err)
	}
	duration := time.Since(start)

	// These fields may never be mutated by a stage.
	flat.CaseID = pre.CaseID
	flat.SchemaVersion = pre.SchemaVersion
	flat.CreatedAt = pre.CreatedAt

	next := domain.FromFlat(flat)
	now := time.Now().UTC()
	if now.After(next.UpdatedAt) {
		next.UpdatedAt = now
	}
	if next.UpdatedAt.Before(pre.UpdatedAt) {
		next.UpdatedAt = pre.UpdatedAt
	}
	next.Errors.Validation = append([]string{}, pre.Errors.Validation...)
	next.Metrics.StageDurationMS[stage] = duration.Milliseconds()
	next.Metrics.TotalDurationMS += duration.Milliseconds()

	validated, err := domain.ValidateState(next, "post:"+stage, r.logger)
	if err != nil {
		r.metrics.ObserveStage(r.service, stage, duration, err)
		return nil, err
	}
	domain.LogStateSnapshot(r.logger, validated, "post:"+stage)
	r.metrics.ObserveStage(r.service, stage, duration, nil)

	r.logger.Info("stage_completed",
		"stage", stage,
		"case_id", validated.CaseID,
		"duration_ms", duration.Milliseconds(),
	)
	return validated, nil
}

// RunSequence threads the state through the ordered stages. The first
// contract violation or fatal stage error terminates the run.
func (r *Runner) RunSequence(ctx context.Context, st *domain.AnalysisState, stages []Stage) (*domain.AnalysisState, error) {
	current := st
	for _, stage := range stages {
		next, err := r.RunStage(ctx, stage.Name, current, stage.Run)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}
