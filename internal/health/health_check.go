package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chartvault/chartvault/internal/cache"
	"github.com/chartvault/chartvault/internal/logger"
	"github.com/chartvault/chartvault/internal/storage"
)

// Status represents overall system health.
type Status struct {
	Timestamp    time.Time       `json:"timestamp"`
	Overall      string          `json:"overall"` // "healthy", "degraded", "unhealthy"
	Storage      ComponentHealth `json:"storage"`
	Cache        ComponentHealth `json:"cache"`
	ResponseTime string          `json:"response_time"`
}

// ComponentHealth represents the health of a single dependency.
type ComponentHealth struct {
	Status    string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Message   string    `json:"message"`
	LastCheck time.Time `json:"last_check"`
}

// Checker performs liveness checks against the blob store and index cache.
type Checker struct {
	store storage.BlobStore
	cache *cache.IndexCache
	log   *logger.Logger

	mu      sync.RWMutex
	cached  *Status
	probeKey string
}

var (
	instance *Checker
	once     sync.Once
)

// Init constructs the singleton Checker and starts its periodic probe.
// probeKey is a blob key (typically index.yaml) used for a cheap Exists
// check against the store.
func Init(store storage.BlobStore, idxCache *cache.IndexCache, log *logger.Logger, probeKey string) *Checker {
	once.Do(func() {
		instance = &Checker{store: store, cache: idxCache, log: log, probeKey: probeKey}
		go instance.runPeriodic()
	})
	return instance
}

// Instance returns the singleton Checker, or nil if Init was never called.
func Instance() *Checker { return instance }

// Check runs all component probes synchronously and returns the result.
func (c *Checker) Check(ctx context.Context) *Status {
	start := time.Now()
	status := &Status{Timestamp: time.Now()}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); status.Storage = c.checkStorage(ctx) }()
	go func() { defer wg.Done(); status.Cache = c.checkCache(ctx) }()
	wg.Wait()

	status.Overall = overallStatus(status)
	status.ResponseTime = time.Since(start).String()

	c.mu.Lock()
	c.cached = status
	c.mu.Unlock()

	return status
}

func (c *Checker) checkStorage(ctx context.Context) ComponentHealth {
	h := ComponentHealth{LastCheck: time.Now()}
	if _, err := c.store.Exists(ctx, c.probeKey); err != nil {
		h.Status = "unhealthy"
		h.Message = fmt.Sprintf("blob store unreachable: %v", err)
		return h
	}
	h.Status = "healthy"
	h.Message = "blob store reachable"
	return h
}

func (c *Checker) checkCache(ctx context.Context) ComponentHealth {
	h := ComponentHealth{LastCheck: time.Now()}
	if c.cache == nil {
		h.Status = "healthy"
		h.Message = "cache disabled"
		return h
	}
	if _, _, err := c.cache.Get(ctx, c.probeKey); err != nil {
		h.Status = "degraded"
		h.Message = fmt.Sprintf("cache probe failed: %v", err)
		return h
	}
	h.Status = "healthy"
	h.Message = "cache reachable"
	return h
}

func overallStatus(s *Status) string {
	if s.Storage.Status == "unhealthy" {
		return "unhealthy"
	}
	if s.Storage.Status == "degraded" || s.Cache.Status == "degraded" {
		return "degraded"
	}
	return "healthy"
}

func (c *Checker) runPeriodic() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c.Check(ctx)
		cancel()
	}
}

// Cached returns the last computed status without re-probing.
func (c *Checker) Cached() *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cached == nil {
		return &Status{Overall: "unknown", Timestamp: time.Now()}
	}
	return c.cached
}
