package finops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
	"github.com/insolvia/case-audit/internal/observability/metrics"
)

// defaultOutputTokens is the completion-size assumption used for the budget
// pre-check when the caller does not cap output.
const defaultOutputTokens = 512

// Gate is the only legitimate call site for operations with real monetary
// cost. Every call runs the same sequence: budget reservation (fail fast,
// before any network work), cache lookup (a hit releases the reservation and
// spends nothing), the actual provider call, and cost recording tagged with
// the pricing version and fingerprint active at call time.
type Gate struct {
	service        string
	pricing        *PricingTable
	ledger         *Ledger
	retrievalCache *TieredCache
	semanticCache  *TieredCache
	model          ports.ModelClient
	retriever      ports.EvidenceRetriever
	logger         *slog.Logger
	metrics        *metrics.FinOpsMetrics
}

func NewGate(
	service string,
	pricing *PricingTable,
	ledger *Ledger,
	retrievalCache *TieredCache,
	semanticCache *TieredCache,
	model ports.ModelClient,
	retriever ports.EvidenceRetriever,
	logger *slog.Logger,
	finopsMetrics *metrics.FinOpsMetrics,
) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		service:        service,
		pricing:        pricing,
		ledger:         ledger,
		retrievalCache: retrievalCache,
		semanticCache:  semanticCache,
		model:          model,
		retriever:      retriever,
		logger:         logger,
		metrics:        finopsMetrics,
	}
}

// CanSpend exposes the ledger predicate for policy signals.
func (g *Gate) CanSpend(ctx context.Context, caseID string, amountUSD float64) (bool, error) {
	return g.ledger.CanSpend(ctx, caseID, amountUSD)
}

// EstimateCompletionUSD exposes the pure pricing estimate for policy signals.
func (g *Gate) EstimateCompletionUSD(model string, inputTokens, outputTokens int) (float64, error) {
	return g.pricing.EstimateUSD(model, inputTokens, outputTokens)
}

// Complete runs a gated model completion.
func (g *Gate) Complete(ctx context.Context, call ports.CompletionCall) (domain.Completion, error) {
	if g.model == nil {
		return domain.Completion{}, domain.WrapError(
			domain.ErrFinOpsBypass, "gate complete", errors.New("no model client attached"),
		)
	}

	estIn := approxTokens(call.Prompt)
	estOut := call.MaxTokens
	if estOut <= 0 {
		estOut = defaultOutputTokens
	}

	res, err := g.checkBudgetOrFail(ctx, call.CaseID, call.Phase, call.Model, estIn, estOut)
	if err != nil {
		return domain.Completion{}, err
	}

	key := SemanticKey(call.Model, call.Prompt)
	if payload, ok := g.semanticCache.Get(ctx, key); ok {
		var completion domain.Completion
		if err := json.Unmarshal(payload, &completion); err == nil {
			g.ledger.Release(res)
			g.metrics.CacheHit(g.service, g.semanticCache.Name())
			completion.Cached = true
			return completion, nil
		}
		// Unreadable payload: evict it and fall through to a real call. The
		// reservation stays held so the call below is still budget-covered.
		g.logger.Warn("semantic_cache_payload_unreadable", "key", key)
		if err := g.semanticCache.Evict(ctx, key); err != nil {
			g.logger.Warn("semantic_cache_evict_failed", "key", key, "error", err)
		}
	}
	g.metrics.CacheMiss(g.service, g.semanticCache.Name())
	g.metrics.CallAllowed(g.service, call.Phase)

	completion, err := g.model.Complete(ctx, domain.CompletionRequest{
		Model:     call.Model,
		Prompt:    call.Prompt,
		MaxTokens: call.MaxTokens,
	})
	if err != nil {
		g.ledger.Release(res)
		return domain.Completion{}, fmt.Errorf("model completion: %w", err)
	}

	if err := g.recordActualCost(ctx, res, call.Model, completion.Provider, completion.InputTokens, completion.OutputTokens, completion.CostUSD); err != nil {
		return domain.Completion{}, err
	}

	if payload, err := json.Marshal(completion); err == nil {
		if err := g.semanticCache.Put(ctx, call.CaseID, key, payload); err != nil {
			g.logger.Warn("semantic_cache_store_failed", "key", key, "error", err)
		}
	}
	return completion, nil
}

// Retrieve runs a gated evidence retrieval: the query embedding is the paid
// part, the corpus search follows on the resulting vector.
func (g *Gate) Retrieve(ctx context.Context, call ports.RetrievalCall) ([]domain.EvidenceChunk, error) {
	if g.model == nil || g.retriever == nil {
		return nil, domain.WrapError(
			domain.ErrFinOpsBypass, "gate retrieve", errors.New("no retriever or model client attached"),
		)
	}

	estIn := approxTokens(call.Query)
	res, err := g.checkBudgetOrFail(ctx, call.CaseID, call.Phase, call.EmbedModel, estIn, 0)
	if err != nil {
		return nil, err
	}

	key := RetrievalKey(call.Corpus, call.CaseID, call.Query, call.TopK)
	if payload, ok := g.retrievalCache.Get(ctx, key); ok {
		var chunks []domain.EvidenceChunk
		if err := json.Unmarshal(payload, &chunks); err == nil {
			g.ledger.Release(res)
			g.metrics.CacheHit(g.service, g.retrievalCache.Name())
			return chunks, nil
		}
		g.logger.Warn("retrieval_cache_payload_unreadable", "key", key)
		if err := g.retrievalCache.Evict(ctx, key); err != nil {
			g.logger.Warn("retrieval_cache_evict_failed", "key", key, "error", err)
		}
	}
	g.metrics.CacheMiss(g.service, g.retrievalCache.Name())
	g.metrics.CallAllowed(g.service, call.Phase)

	embedded, err := g.model.Embed(ctx, call.EmbedModel, []string{call.Query})
	if err != nil {
		g.ledger.Release(res)
		return nil, fmt.Errorf("embed retrieval query: %w", err)
	}
	if len(embedded.Vectors) == 0 {
		g.ledger.Release(res)
		return nil, domain.WrapError(domain.ErrTemporary, "embed retrieval query", errors.New("provider returned no vectors"))
	}

	// The embedding cost is incurred whether or not the search succeeds.
	if err := g.recordActualCost(ctx, res, call.EmbedModel, embedded.Provider, embedded.InputTokens, 0, embedded.CostUSD); err != nil {
		return nil, err
	}

	chunks, err := g.retriever.Search(ctx, call.Corpus, call.CaseID, embedded.Vectors[0], call.TopK)
	if err != nil {
		return nil, fmt.Errorf("search corpus %s: %w", call.Corpus, err)
	}

	if payload, err := json.Marshal(chunks); err == nil {
		if err := g.retrievalCache.Put(ctx, call.CaseID, key, payload); err != nil {
			g.logger.Warn("retrieval_cache_store_failed", "key", key, "error", err)
		}
	}
	return chunks, nil
}

// Embed runs a gated embedding batch, cached alongside semantic responses.
func (g *Gate) Embed(ctx context.Context, caseID, phase, model string, texts []string) (domain.EmbedResult, error) {
	if g.model == nil {
		return domain.EmbedResult{}, domain.WrapError(
			domain.ErrFinOpsBypass, "gate embed", errors.New("no model client attached"),
		)
	}
	if len(texts) == 0 {
		return domain.EmbedResult{}, nil
	}

	estIn := 0
	for _, text := range texts {
		estIn += approxTokens(text)
	}
	res, err := g.checkBudgetOrFail(ctx, caseID, phase, model, estIn, 0)
	if err != nil {
		return domain.EmbedResult{}, err
	}

	key := EmbedKey(model, texts)
	if payload, ok := g.semanticCache.Get(ctx, key); ok {
		var result domain.EmbedResult
		if err := json.Unmarshal(payload, &result); err == nil {
			g.ledger.Release(res)
			g.metrics.CacheHit(g.service, g.semanticCache.Name())
			return result, nil
		}
		g.logger.Warn("embed_cache_payload_unreadable", "key", key)
		if err := g.semanticCache.Evict(ctx, key); err != nil {
			g.logger.Warn("embed_cache_evict_failed", "key", key, "error", err)
		}
	}
	g.metrics.CacheMiss(g.service, g.semanticCache.Name())
	g.metrics.CallAllowed(g.service, phase)

	result, err := g.model.Embed(ctx, model, texts)
	if err != nil {
		g.ledger.Release(res)
		return domain.EmbedResult{}, fmt.Errorf("embed batch: %w", err)
	}

	if err := g.recordActualCost(ctx, res, model, result.Provider, result.InputTokens, 0, result.CostUSD); err != nil {
		return domain.EmbedResult{}, err
	}
	if payload, err := json.Marshal(result); err == nil {
		if err := g.semanticCache.Put(ctx, caseID, key, payload); err != nil {
			g.logger.Warn("embed_cache_store_failed", "key", key, "error", err)
		}
	}
	return result, nil
}

// checkBudgetOrFail estimates the cost and reserves it against the case
// ceiling, before any network call or cache-bypassing work.
func (g *Gate) checkBudgetOrFail(ctx context.Context, caseID, phase, model string, estInputTokens, estOutputTokens int) (*Reservation, error) {
	cost, err := g.pricing.EstimateUSD(model, estInputTokens, estOutputTokens)
	if err != nil {
		return nil, err
	}
	res, err := g.ledger.Reserve(ctx, caseID, phase, cost)
	if err != nil {
		if domain.IsKind(err, domain.ErrBudgetExceeded) {
			g.metrics.CallDenied(g.service, domain.ReasonBudgetExceeded)
			g.logger.Warn("budget_denied",
				"case_id", caseID,
				"phase", phase,
				"model", model,
				"estimated_usd", cost,
			)
		}
		return nil, err
	}
	return res, nil
}

// recordActualCost settles the reservation with the real cost: the provider-
// reported amount when available, the pricing estimate over actual token
// counts otherwise.
func (g *Gate) recordActualCost(ctx context.Context, res *Reservation, model, provider string, inputTokens, outputTokens int, providerCostUSD float64) error {
	cost := providerCostUSD
	if cost <= 0 {
		estimated, err := g.pricing.EstimateUSD(model, inputTokens, outputTokens)
		if err != nil {
			// The model was priced for the pre-check; this only fires on
			// negative provider token counts.
			g.ledger.Release(res)
			return err
		}
		cost = estimated
	}
	if provider == "" {
		provider = g.pricing.Provider(model)
	}

	info := g.pricing.Info()
	entry := domain.LedgerEntry{
		Phase:              res.Phase,
		Provider:           provider,
		Model:              model,
		InputTokens:        inputTokens,
		OutputTokens:       outputTokens,
		CostUSD:            cost,
		TraceID:            uuid.NewString(),
		PricingVersion:     info.Version,
		PricingFingerprint: info.Fingerprint,
		RecordedAt:         time.Now().UTC(),
	}
	if err := g.ledger.Commit(ctx, res, entry); err != nil {
		return err
	}
	g.metrics.AddSpend(g.service, res.Phase, model, cost)
	return nil
}

// approxTokens is the pre-check token estimate for budget reservation; the
// recorded cost always uses actual counts.
func approxTokens(text string) int {
	return len(text)/4 + 1
}
