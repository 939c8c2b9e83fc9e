package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kestrel-sh/kestrel/internal/port/cache"
)

// CardCache caches resolved agent cards by URL so repeated calls to the same
// remote agent skip the well-known fetch. A nil cache always misses.
type CardCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewCardCache wraps a cache with the given entry TTL.
func NewCardCache(c cache.Cache, ttl time.Duration) *CardCache {
	return &CardCache{cache: c, ttl: ttl}
}

// Get returns the cached card for a URL, if present and decodable.
func (c *CardCache) Get(ctx context.Context, url string) (*a2a.AgentCard, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	data, ok, err := c.cache.Get(ctx, url)
	if err != nil || !ok {
		return nil, false
	}
	var card a2a.AgentCard
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, false
	}
	return &card, true
}

// Put stores a card. Failures are ignored; the cache is best effort.
func (c *CardCache) Put(ctx context.Context, url string, card *a2a.AgentCard) {
	if c == nil || c.cache == nil {
		return
	}
	data, err := json.Marshal(card)
	if err != nil {
		return
	}
	_ = c.cache.Set(ctx, url, data, c.ttl)
}
