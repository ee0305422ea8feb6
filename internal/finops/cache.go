package finops

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/insolvia/case-audit/internal/core/ports"
)

// TieredCache is one content-addressed cache with a fast in-memory LRU tier
// and a slower persistent tier. Expiry is checked opportunistically on
// access; hot-tier eviction (LRU size bound) and cold-tier persistence are
// independent concerns.
type TieredCache struct {
	name string
	hot  *lru.Cache[string, hotEntry]
	cold ports.CacheBackend
	ttl  time.Duration
}

type hotEntry struct {
	payload  []byte
	caseID   string
	storedAt time.Time
}

func NewTieredCache(name string, hotSize int, ttl time.Duration, cold ports.CacheBackend) (*TieredCache, error) {
	if hotSize <= 0 {
		hotSize = 1024
	}
	hot, err := lru.New[string, hotEntry](hotSize)
	if err != nil {
		return nil, fmt.Errorf("init %s hot tier: %w", name, err)
	}
	return &TieredCache{
		name: name,
		hot:  hot,
		cold: cold,
		ttl:  ttl,
	}, nil
}

func (c *TieredCache) Name() string { return c.name }

// Get checks the hot tier, then the cold tier; a cold hit is promoted.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if entry, ok := c.hot.Get(key); ok {
		if c.expired(entry.storedAt) {
			c.hot.Remove(key)
		} else {
			return entry.payload, true
		}
	}
	if c.cold == nil {
		return nil, false
	}

	payload, ok, err := c.cold.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	c.hot.Add(key, hotEntry{payload: payload, storedAt: time.Now().UTC()})
	return payload, true
}

func (c *TieredCache) Put(ctx context.Context, caseID, key string, payload []byte) error {
	c.hot.Add(key, hotEntry{payload: payload, caseID: caseID, storedAt: time.Now().UTC()})
	if c.cold == nil {
		return nil
	}
	if err := c.cold.Store(ctx, key, caseID, payload, c.ttl); err != nil {
		return fmt.Errorf("store %s cold tier: %w", c.name, err)
	}
	return nil
}

// Evict drops one entry from both tiers. Used when a stored payload turns out
// to be unreadable.
func (c *TieredCache) Evict(ctx context.Context, key string) error {
	c.hot.Remove(key)
	if c.cold == nil {
		return nil
	}
	return c.cold.Delete(ctx, key)
}

func (c *TieredCache) DeleteByCase(ctx context.Context, caseID string) error {
	for _, key := range c.hot.Keys() {
		if entry, ok := c.hot.Peek(key); ok && entry.caseID == caseID {
			c.hot.Remove(key)
		}
	}
	if c.cold == nil {
		return nil
	}
	return c.cold.DeleteByCase(ctx, caseID)
}

// CleanupExpired sweeps expired hot entries and delegates to the cold tier.
func (c *TieredCache) CleanupExpired(ctx context.Context) (int, error) {
	removed := 0
	for _, key := range c.hot.Keys() {
		if entry, ok := c.hot.Peek(key); ok && c.expired(entry.storedAt) {
			c.hot.Remove(key)
			removed++
		}
	}
	if c.cold == nil {
		return removed, nil
	}
	coldRemoved, err := c.cold.CleanupExpired(ctx)
	return removed + coldRemoved, err
}

func (c *TieredCache) expired(storedAt time.Time) bool {
	return c.ttl > 0 && time.Since(storedAt) > c.ttl
}

// RetrievalKey addresses a retrieval result by its semantically relevant
// inputs: normalized query text plus scope parameters.
func RetrievalKey(corpus, caseID, query string, topK int) string {
	return "ret:" + hashKey(normalizeText(query), corpus, caseID, strconv.Itoa(topK))
}

// SemanticKey addresses a prompt response by model and normalized prompt.
func SemanticKey(model, prompt string) string {
	return "sem:" + hashKey(model, normalizeText(prompt))
}

// EmbedKey addresses an embedding batch by model and normalized inputs.
func EmbedKey(model string, texts []string) string {
	normalized := make([]string, len(texts))
	for i, text := range texts {
		normalized[i] = normalizeText(text)
	}
	return "emb:" + hashKey(append([]string{model}, normalized...)...)
}

func hashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
