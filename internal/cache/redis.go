// Package cache implements the read-through cache in front of index.yaml.
// It wraps a Redis client (github.com/redis/go-redis/v9) the same way
// chartvault's other optional dependencies are wrapped: absent configuration
// degrades to a no-op rather than an error, since chartvault must run with
// no external dependencies beyond the blob store.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// IndexCache is a read-through cache over raw index.yaml bytes, keyed by
// blob key. A nil *IndexCache is never constructed by New when a Redis URL
// is configured; callers that want a degraded no-op cache call New with an
// empty URL.
type IndexCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds an IndexCache against redisURL. An empty redisURL returns a
// disabled cache whose Get always misses and whose Set/Invalidate are
// no-ops, so callers never need to branch on configuration.
func New(redisURL string, ttl time.Duration) (*IndexCache, error) {
	if redisURL == "" {
		return &IndexCache{}, nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &IndexCache{client: redis.NewClient(opt), ttl: ttl}, nil
}

// enabled reports whether this cache is backed by a real client.
func (c *IndexCache) enabled() bool { return c != nil && c.client != nil }

// Get returns the cached bytes for key, and whether they were found.
func (c *IndexCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores raw under key with the configured TTL.
func (c *IndexCache) Set(ctx context.Context, key string, raw []byte) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate deletes key so the next Get falls through to the blob store.
// Called by the orchestrator inside the same critical section as an index
// commit, so readers never observe a stale document for longer than the
// commit itself takes.
func (c *IndexCache) Invalidate(ctx context.Context, key string) error {
	if !c.enabled() {
		return nil
	}
	err := c.client.Del(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Close releases the underlying Redis connection, if any.
func (c *IndexCache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.client.Close()
}
