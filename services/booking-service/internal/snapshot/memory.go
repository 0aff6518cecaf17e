package snapshot

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is a process-local Cache for deployments without Redis.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	cfg     Config
	expires time.Time
	ok      bool
	gen     int64
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(context.Context) (Config, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ok || c.now().After(c.expires) {
		return Config{}, false, nil
	}
	return c.cfg, true, nil
}

func (c *MemoryCache) Generation(context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen, nil
}

func (c *MemoryCache) Set(_ context.Context, cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.Generation != c.gen {
		return nil
	}
	c.cfg = cfg
	c.ok = true
	c.expires = c.now().Add(c.ttl)
	return nil
}

func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.ok = false
	c.cfg = Config{}
	return nil
}
