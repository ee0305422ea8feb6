package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend is the shared cold-cache backend. Entry expiry rides on Redis TTLs;
// a per-case key set makes case invalidation a single set sweep instead of a
// full keyspace scan.
type Backend struct {
	client *redis.Client
	prefix string
}

func New(addr, password string, db int, prefix string) (*Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if prefix == "" {
		prefix = "caseaudit"
	}
	return &Backend{client: client, prefix: prefix}, nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) entryKey(key string) string {
	return b.prefix + ":entry:" + key
}

func (b *Backend) caseSetKey(caseID string) string {
	return b.prefix + ":case:" + caseID
}

func (b *Backend) Store(ctx context.Context, key, caseID string, payload []byte, ttl time.Duration) error {
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.entryKey(key), payload, ttl)
	pipe.SAdd(ctx, b.caseSetKey(caseID), key)
	// The case set outlives its entries slightly; stale members are dropped
	// on invalidation.
	pipe.Expire(ctx, b.caseSetKey(caseID), ttl+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store: %w", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := b.client.Get(ctx, b.entryKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return payload, true, nil
}

// Delete drops one entry. The stale member in its case set is harmless and
// falls out on invalidation.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.entryKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (b *Backend) DeleteByCase(ctx context.Context, caseID string) error {
	setKey := b.caseSetKey(caseID)
	keys, err := b.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("redis smembers: %w", err)
	}

	pipe := b.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, b.entryKey(key))
	}
	pipe.Del(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete by case: %w", err)
	}
	return nil
}

// CleanupExpired is a no-op: Redis evicts expired entries on its own.
func (b *Backend) CleanupExpired(context.Context) (int, error) {
	return 0, nil
}
