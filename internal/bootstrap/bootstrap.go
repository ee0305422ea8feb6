package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/insolvia/case-audit/internal/config"
	"github.com/insolvia/case-audit/internal/core/ports"
	"github.com/insolvia/case-audit/internal/core/usecase"
	"github.com/insolvia/case-audit/internal/finops"
	"github.com/insolvia/case-audit/internal/infrastructure/cache/memory"
	redisbackend "github.com/insolvia/case-audit/internal/infrastructure/cache/redis"
	"github.com/insolvia/case-audit/internal/infrastructure/extractor/exceltext"
	"github.com/insolvia/case-audit/internal/infrastructure/extractor/pdftext"
	"github.com/insolvia/case-audit/internal/infrastructure/extractor/plaintext"
	"github.com/insolvia/case-audit/internal/infrastructure/llm/openaicompat"
	natsq "github.com/insolvia/case-audit/internal/infrastructure/queue/nats"
	"github.com/insolvia/case-audit/internal/infrastructure/repository/postgres"
	"github.com/insolvia/case-audit/internal/infrastructure/resilience"
	"github.com/insolvia/case-audit/internal/infrastructure/storage/localfs"
	"github.com/insolvia/case-audit/internal/infrastructure/vector/qdrant"
	"github.com/insolvia/case-audit/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Metrics *metrics.PipelineMetrics
	Queue   ports.MessageQueue

	UploadUC  *usecase.UploadDocumentUseCase
	StartUC   *usecase.StartAnalysisUseCase
	AnalyzeUC ports.CaseAnalyzer
	Runs      ports.RunReader
	Budgets   ports.BudgetReader

	RetrievalCache *finops.TieredCache
	SemanticCache  *finops.TieredCache

	closeFn func()
}

// New wires the full application graph for one service (api or worker). Both
// services share the same wiring; they differ only in which parts they serve.
func New(ctx context.Context, service string, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := natsq.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsq.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	pricing, err := finops.LoadPricingTable()
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load pricing table: %w", err)
	}

	var cold ports.CacheBackend
	var closeCold func()
	if cfg.RedisAddr != "" {
		redisCold, err := redisbackend.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CachePrefix)
		if err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		cold = redisCold
		closeCold = func() { _ = redisCold.Close() }
	} else {
		cold = memory.New()
		closeCold = func() {}
	}

	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
	retrievalCache, err := finops.NewTieredCache("retrieval", cfg.CacheHotSize, ttl, cold)
	if err != nil {
		return nil, err
	}
	semanticCache, err := finops.NewTieredCache("semantic", cfg.CacheHotSize, ttl, cold)
	if err != nil {
		return nil, err
	}

	pipelineMetrics := metrics.NewPipelineMetrics(service)
	finopsMetrics := metrics.NewFinOpsMetrics(service, pipelineMetrics.Registry())

	ledgerStore := postgres.NewLedgerRepository(db)
	ledger := finops.NewLedger(cfg.BudgetCeilingUSD, ledgerStore, logger)

	modelClient := openaicompat.New(cfg.ProviderBaseURL, cfg.ProviderAPIKey, openaicompat.Options{
		Provider:           cfg.ProviderName,
		RequestsPerSecond:  cfg.ProviderRPS,
		ResilienceExecutor: executor,
	})
	retriever := qdrant.New(cfg.QdrantURL, []string{cfg.CaseCorpus})

	gate := finops.NewGate(
		service, pricing, ledger,
		retrievalCache, semanticCache,
		modelClient, retriever,
		logger, finopsMetrics,
	)

	docRepo := postgres.NewCaseDocumentRepository(db)
	runRepo := postgres.NewRunRepository(db)
	factRepo := postgres.NewFactRepository(db)
	facts := usecase.NewScopedFactStore(factRepo, usecase.AccessMode(cfg.AccessMode), logger)

	uploadUC := usecase.NewUploadDocumentUseCase(
		storage, docRepo,
		map[string]ports.TextExtractor{
			"pdf":  pdftext.New(),
			"xlsx": exceltext.New(),
			"xls":  exceltext.New(),
			"txt":  plaintext.New(),
			"csv":  plaintext.New(),
		},
		plaintext.New(),
		logger,
	)
	startUC := usecase.NewStartAnalysisUseCase(runRepo, queue, logger)

	runner := usecase.NewRunner(service, logger, pipelineMetrics)
	stages := []usecase.Stage{
		usecase.NewIngestStage(docRepo).Stage(),
		usecase.NewTimelineStage().Stage(),
		usecase.NewFactsStage(facts).Stage(),
		usecase.NewRisksStage().Stage(),
		usecase.NewLegalRulesStage().Stage(),
		usecase.NewEvidenceStage(gate, usecase.EvidenceConfig{
			EmbedModel:  cfg.EmbedModel,
			CaseCorpus:  cfg.CaseCorpus,
			LegalCorpus: cfg.LegalCorpus,
			TopK:        cfg.RAGTopK,
		}).Stage(),
		usecase.NewFindingsStage(gate, usecase.FindingsConfig{
			Model:            cfg.GenModel,
			MaxTokens:        cfg.FindingsTokens,
			MinEvidenceScore: cfg.MinEvidenceScore,
		}).Stage(),
		usecase.NewReportStage(gate, usecase.ReportConfig{
			Model:     cfg.GenModel,
			MaxTokens: cfg.ReportTokens,
		}).Stage(),
	}
	analyzeUC := usecase.NewAnalyzeCaseUseCase(service, runner, stages, runRepo, pipelineMetrics, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: pipelineMetrics,
		Queue:   queue,

		UploadUC:  uploadUC,
		StartUC:   startUC,
		AnalyzeUC: analyzeUC,
		Runs:      usecase.NewRunReadUseCase(runRepo),
		Budgets:   ledger,

		RetrievalCache: retrievalCache,
		SemanticCache:  semanticCache,

		closeFn: func() {
			queue.Close()
			closeCold()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
