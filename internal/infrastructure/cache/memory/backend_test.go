package memory

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestStoreAndGet(t *testing.T) {
	backend := New()
	ctx := context.Background()

	if err := backend.Store(ctx, "k1", "case-1", []byte("payload"), time.Hour); err != nil {
		t.Fatalf("store: %v", err)
	}
	payload, ok, err := backend.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(payload, []byte("payload")) {
		t.Fatalf("payload = %q", payload)
	}
}

func TestGetExpiresLazily(t *testing.T) {
	backend := New()
	ctx := context.Background()

	current := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	backend.now = func() time.Time { return current }

	if err := backend.Store(ctx, "k1", "case-1", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, ok, _ := backend.Get(ctx, "k1"); ok {
		t.Fatalf("expired entry served")
	}
}

func TestDeleteRemovesSingleKey(t *testing.T) {
	backend := New()
	ctx := context.Background()

	_ = backend.Store(ctx, "k1", "case-1", []byte("one"), time.Hour)
	_ = backend.Store(ctx, "k2", "case-1", []byte("two"), time.Hour)

	if err := backend.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := backend.Get(ctx, "k1"); ok {
		t.Fatalf("deleted entry survived")
	}
	if _, ok, _ := backend.Get(ctx, "k2"); !ok {
		t.Fatalf("sibling entry deleted collaterally")
	}
}

func TestDeleteByCase(t *testing.T) {
	backend := New()
	ctx := context.Background()

	_ = backend.Store(ctx, "k1", "case-1", []byte("one"), time.Hour)
	_ = backend.Store(ctx, "k2", "case-2", []byte("two"), time.Hour)

	if err := backend.DeleteByCase(ctx, "case-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := backend.Get(ctx, "k1"); ok {
		t.Fatalf("case-1 entry survived")
	}
	if _, ok, _ := backend.Get(ctx, "k2"); !ok {
		t.Fatalf("case-2 entry deleted collaterally")
	}
}

func TestCleanupExpiredSweeps(t *testing.T) {
	backend := New()
	ctx := context.Background()

	current := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	backend.now = func() time.Time { return current }

	_ = backend.Store(ctx, "k1", "case-1", []byte("one"), time.Minute)
	_ = backend.Store(ctx, "k2", "case-1", []byte("two"), time.Hour)

	current = current.Add(10 * time.Minute)
	removed, err := backend.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := backend.Get(ctx, "k2"); !ok {
		t.Fatalf("live entry swept")
	}
}
