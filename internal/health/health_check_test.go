package health

import (
	"context"
	"testing"
	"time"

	"github.com/chartvault/chartvault/internal/cache"
	"github.com/chartvault/chartvault/internal/logger"
	"github.com/chartvault/chartvault/internal/storage"
)

func TestCheckHealthyWithNoCache(t *testing.T) {
	noCache, err := cache.New("", 0)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	c := &Checker{
		store:    storage.NewMemoryStore(),
		cache:    noCache,
		log:      logger.New(),
		probeKey: "index.yaml",
	}

	status := c.Check(context.Background())
	if status.Overall != "healthy" {
		t.Fatalf("Overall = %q, want healthy: %+v", status.Overall, status)
	}
	if status.Storage.Status != "healthy" {
		t.Fatalf("Storage.Status = %q", status.Storage.Status)
	}
	if status.Cache.Status != "healthy" {
		t.Fatalf("Cache.Status = %q, want healthy (disabled cache reports healthy)", status.Cache.Status)
	}
}

func TestCachedBeforeFirstCheck(t *testing.T) {
	c := &Checker{store: storage.NewMemoryStore(), log: logger.New(), probeKey: "index.yaml"}
	status := c.Cached()
	if status.Overall != "unknown" {
		t.Fatalf("Overall = %q, want unknown before any check has run", status.Overall)
	}
}

func TestCachedAfterCheck(t *testing.T) {
	c := &Checker{store: storage.NewMemoryStore(), log: logger.New(), probeKey: "index.yaml"}
	c.Check(context.Background())

	cached := c.Cached()
	if cached.Overall == "unknown" {
		t.Fatalf("expected a cached status after Check ran")
	}
	if time.Since(cached.Timestamp) > time.Minute {
		t.Fatalf("cached status looks stale: %v", cached.Timestamp)
	}
}
