package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/theoremus-urban-solutions/smartbus/gtfsrt"
)

// DefaultTTL is the upstream-friendly reuse window for a fetched snapshot.
const DefaultTTL = 60 * time.Second

const flightKey = "feed"

// Fetcher produces a fresh snapshot. *gtfsrt.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) (*gtfsrt.FeedSnapshot, error)
}

// Metrics receives cache outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	CacheHit()
	CacheMiss()
}

// Option configures a SnapshotCache.
type Option func(*SnapshotCache)

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *SnapshotCache) { c.metrics = m }
}

// SnapshotCache reuses the last successful snapshot while it is younger than
// the TTL. The slot (snapshot + capture time) is only ever replaced as a whole.
type SnapshotCache struct {
	fetcher Fetcher
	ttl     time.Duration
	metrics Metrics

	mu       sync.RWMutex
	snapshot *gtfsrt.FeedSnapshot
	cachedAt time.Time

	group singleflight.Group
}

// New creates a cache in front of fetcher. A non-positive ttl selects DefaultTTL.
func New(fetcher Fetcher, ttl time.Duration, opts ...Option) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &SnapshotCache{fetcher: fetcher, ttl: ttl}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL returns the configured reuse window.
func (c *SnapshotCache) TTL() time.Duration { return c.ttl }

// GetOrFetch returns the cached snapshot when now-cachedAt < TTL, without
// any I/O. Otherwise it fetches once, shared by all concurrent callers, and on
// success replaces the slot with the new snapshot captured at now. On failure
// the previous slot is kept and the error is returned.
func (c *SnapshotCache) GetOrFetch(ctx context.Context, now time.Time) (*gtfsrt.FeedSnapshot, error) {
	if snap, ok := c.fresh(now); ok {
		c.hit()
		return snap, nil
	}

	v, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		// A flight that finished just before this one may have filled the slot.
		if snap, ok := c.fresh(now); ok {
			c.hit()
			return snap, nil
		}
		if c.metrics != nil {
			c.metrics.CacheMiss()
		}
		// Callers waiting on this flight must not fail because the first
		// caller went away; the fetcher's own timeout bounds the request.
		snap, err := c.fetcher.Fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snapshot = snap
		c.cachedAt = now
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gtfsrt.FeedSnapshot), nil
}

// Peek returns the cached snapshot and its capture time regardless of age.
func (c *SnapshotCache) Peek() (*gtfsrt.FeedSnapshot, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.cachedAt, c.snapshot != nil
}

func (c *SnapshotCache) fresh(now time.Time) (*gtfsrt.FeedSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot != nil && now.Sub(c.cachedAt) < c.ttl {
		return c.snapshot, true
	}
	return nil, false
}

func (c *SnapshotCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHit()
	}
}
