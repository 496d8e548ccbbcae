// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cache provides a process-lifetime get-or-compute cache for upstream
// responses, partitioned into named regions with TTL-based staleness.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/autobrr/discovarr/internal/metrics"
)

// ComputeFunc produces the value for a cache key on miss.
type ComputeFunc func(ctx context.Context) (any, error)

type entry struct {
	value    any
	storedAt time.Time
}

type region struct {
	mu      sync.RWMutex
	entries map[string]entry
	hits    int64
	misses  int64
}

// Cache is a TTL cache keyed by (region, key). Entries are replaced on
// staleness and never explicitly deleted. Concurrent callers computing the
// same key are collapsed into a single upstream call.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	regions map[string]*region

	group singleflight.Group
}

// RegionStats is a point-in-time snapshot of one cache region.
type RegionStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// New creates a cache with the given entry TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		regions: make(map[string]*region),
	}
}

// TTL returns the configured entry TTL.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) region(name string) *region {
	c.mu.RLock()
	r, ok := c.regions[name]
	c.mu.RUnlock()
	if ok {
		return r
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok = c.regions[name]; ok {
		return r
	}
	r = &region{entries: make(map[string]entry)}
	c.regions[name] = r
	return r
}

// GetOrCompute returns the live cached value for (regionName, key), or invokes
// compute, stores the result with the current timestamp and returns it. A
// failed compute stores nothing and the error propagates to the caller.
func (c *Cache) GetOrCompute(ctx context.Context, regionName, key string, compute ComputeFunc) (any, error) {
	r := c.region(regionName)

	if value, ok := r.get(key, c.ttl); ok {
		r.count(true)
		metrics.CacheHits.WithLabelValues(regionName).Inc()
		return value, nil
	}

	r.count(false)
	metrics.CacheMisses.WithLabelValues(regionName).Inc()

	// Collapse a miss burst for the same key into one upstream call. Every
	// waiter observes the same result, and the stored entry is always a
	// completed value.
	value, err, _ := c.group.Do(regionName+"\x1f"+key, func() (any, error) {
		// A concurrent flight may have stored the value between our
		// staleness check and this callback running.
		if value, ok := r.get(key, c.ttl); ok {
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		r.set(key, value)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Stats returns per-region entry counts and hit/miss totals.
func (c *Cache) Stats() map[string]RegionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make(map[string]RegionStats, len(c.regions))
	for name, r := range c.regions {
		r.mu.RLock()
		stats[name] = RegionStats{
			Entries: len(r.entries),
			Hits:    r.hits,
			Misses:  r.misses,
		}
		r.mu.RUnlock()
	}
	return stats
}

func (r *region) get(key string, ttl time.Duration) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok || time.Since(e.storedAt) >= ttl {
		return nil, false
	}
	return e.value, true
}

func (r *region) count(hit bool) {
	r.mu.Lock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
	r.mu.Unlock()
}

func (r *region) set(key string, value any) {
	r.mu.Lock()
	r.entries[key] = entry{value: value, storedAt: time.Now()}
	r.mu.Unlock()
}

// GetOrCompute is the typed variant of Cache.GetOrCompute.
func GetOrCompute[T any](ctx context.Context, c *Cache, regionName, key string, compute func(ctx context.Context) (T, error)) (T, error) {
	value, err := c.GetOrCompute(ctx, regionName, key, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, nil
	}
	return typed, nil
}
