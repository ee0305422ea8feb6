package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insolvia/case-audit/internal/bootstrap"
	"github.com/insolvia/case-audit/internal/config"
	"github.com/insolvia/case-audit/internal/observability/logging"
)

const cacheSweepInterval = time.Hour

func main() {
	cfg := config.Load()
	logger := logging.New("worker", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.Metrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	go sweepCaches(ctx, app, logger)

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeAnalysisRequested(ctx, func(handlerCtx context.Context, caseID, runID string) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, 15*time.Minute)
		defer cancel()
		return app.AnalyzeUC.Analyze(runCtx, caseID, runID)
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func sweepCaches(ctx context.Context, app *bootstrap.App, logger *slog.Logger) {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, cache := range []interface {
				CleanupExpired(context.Context) (int, error)
			}{app.RetrievalCache, app.SemanticCache} {
				removed, err := cache.CleanupExpired(ctx)
				if err != nil {
					logger.Warn("cache_sweep_failed", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("cache_sweep", "removed", removed)
				}
			}
		}
	}
}
