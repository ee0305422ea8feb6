package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	caseID    string
	payload   []byte
	expiresAt time.Time
}

// Backend is the in-process cold-cache backend for single-node deployments
// and tests. Expired entries are dropped lazily on read and in bulk by
// CleanupExpired.
type Backend struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Backend {
	return &Backend{
		entries: map[string]entry{},
		now:     time.Now,
	}
}

func (b *Backend) Store(_ context.Context, key, caseID string, payload []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = entry{
		caseID:    caseID,
		payload:   append([]byte{}, payload...),
		expiresAt: b.now().Add(ttl),
	}
	return nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	item, ok := b.entries[key]
	b.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if b.now().After(item.expiresAt) {
		b.mu.Lock()
		delete(b.entries, key)
		b.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte{}, item.payload...), true, nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

func (b *Backend) DeleteByCase(_ context.Context, caseID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, item := range b.entries {
		if item.caseID == caseID {
			delete(b.entries, key)
		}
	}
	return nil
}

func (b *Backend) CleanupExpired(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	removed := 0
	for key, item := range b.entries {
		if now.After(item.expiresAt) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed, nil
}
