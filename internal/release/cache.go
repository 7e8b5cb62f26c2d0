package release

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a fetched version may be reused without asking
// upstream again.
const DefaultTTL = time.Hour

// Cache memoizes the newest known cloudflared version. It is process-wide:
// one upstream release feed serves every monitored account.
//
// Refresh is serialized under the mutex, so when several account monitors
// hit an expired cache at once only the first performs a fetch; the rest
// observe the refreshed value.
type Cache struct {
	fetch func(context.Context) string
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	version   string
	fetchedAt time.Time
}

// NewCache wraps a fetch function (typically Client.Latest) in a TTL memo.
// A non-positive ttl falls back to DefaultTTL.
func NewCache(fetch func(context.Context) string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		fetch: fetch,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the latest known version. Within the TTL window the cached
// value is returned without a network call. Past it, a fetch is attempted;
// on failure the stale value is kept and returned, so the result is only
// empty if no fetch has ever succeeded.
func (c *Cache) Get(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version != "" && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.version
	}

	if v := c.fetch(ctx); v != "" {
		c.version = v
		c.fetchedAt = c.now()
	}
	return c.version
}

// Expire forces the next Get to refetch regardless of age. The cached value
// is kept as the stale fallback.
func (c *Cache) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
