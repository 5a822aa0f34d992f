package search

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached memoizes successful searches per normalized query.
type Cached struct {
	next  Provider
	cache *cache.Cache
}

func NewCached(next Provider, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Search(ctx context.Context, query string) ([]Result, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if x, found := c.cache.Get(key); found {
		return append([]Result(nil), x.([]Result)...), nil
	}

	results, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, results, cache.DefaultExpiration)
	return append([]Result(nil), results...), nil
}
