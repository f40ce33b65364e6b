package geocode

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached wraps a Geocoder and remembers results per address, so reruns of a
// country and duplicate sites do not query the provider twice. Errors are
// not cached.
type Cached struct {
	next  Geocoder
	store *cache.Cache
}

// NewCached returns a cache in front of next. A zero ttl keeps entries until
// the process exits.
func NewCached(next Geocoder, ttl time.Duration) *Cached {
	cleanup := 2 * ttl
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	return &Cached{next: next, store: cache.New(ttl, cleanup)}
}

func (c *Cached) Geocode(ctx context.Context, a Address, verbose bool) (Result, error) {
	k := a.Key()
	if v, ok := c.store.Get(k); ok {
		return v.(Result), nil
	}
	res, err := c.next.Geocode(ctx, a, verbose)
	if err != nil {
		return res, err
	}
	c.store.SetDefault(k, res)
	return res, nil
}

// Len returns the number of cached addresses.
func (c *Cached) Len() int { return c.store.ItemCount() }

// Flush drops every cached result.
func (c *Cached) Flush() { c.store.Flush() }
