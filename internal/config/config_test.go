package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BUDGET_CEILING_USD", "")
	t.Setenv("ACCESS_MODE", "")
	t.Setenv("MIN_EVIDENCE_SCORE", "")
	t.Setenv("GEN_MODEL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOG_FORMAT", "")

	cfg := Load()
	if cfg.BudgetCeilingUSD != 5.0 {
		t.Fatalf("expected default budget ceiling 5.0, got %v", cfg.BudgetCeilingUSD)
	}
	if cfg.AccessMode != "strict" {
		t.Fatalf("expected default access mode strict, got %q", cfg.AccessMode)
	}
	if cfg.MinEvidenceScore != 0.35 {
		t.Fatalf("expected default evidence score 0.35, got %v", cfg.MinEvidenceScore)
	}
	if cfg.GenModel != "gpt-4" {
		t.Fatalf("expected default generation model gpt-4, got %q", cfg.GenModel)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected redis disabled by default, got %q", cfg.RedisAddr)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("expected default log format json, got %q", cfg.LogFormat)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("BUDGET_CEILING_USD", "12.5")
	t.Setenv("ACCESS_MODE", "permissive")
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("CACHE_TTL_HOURS", "48")
	t.Setenv("NATS_SUBJECT", "cases.analyze.staging")
	t.Setenv("LOG_FORMAT", "text")

	cfg := Load()
	if cfg.BudgetCeilingUSD != 12.5 {
		t.Fatalf("expected budget ceiling override, got %v", cfg.BudgetCeilingUSD)
	}
	if cfg.AccessMode != "permissive" {
		t.Fatalf("expected access mode override, got %q", cfg.AccessMode)
	}
	if cfg.RAGTopK != 8 {
		t.Fatalf("expected top-k 8, got %d", cfg.RAGTopK)
	}
	if cfg.CacheTTLHours != 48 {
		t.Fatalf("expected cache ttl 48, got %d", cfg.CacheTTLHours)
	}
	if cfg.NATSSubject != "cases.analyze.staging" {
		t.Fatalf("expected subject override, got %q", cfg.NATSSubject)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("expected log format override, got %q", cfg.LogFormat)
	}
}

func TestLoadFallsBackOnUnparsableNumbers(t *testing.T) {
	t.Setenv("BUDGET_CEILING_USD", "not-a-number")
	t.Setenv("RAG_TOP_K", "many")

	cfg := Load()
	if cfg.BudgetCeilingUSD != 5.0 {
		t.Fatalf("unparsable float must fall back, got %v", cfg.BudgetCeilingUSD)
	}
	if cfg.RAGTopK != 5 {
		t.Fatalf("unparsable int must fall back, got %d", cfg.RAGTopK)
	}
}
