package geography

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_geography_cache_hits_total",
		Help: "Geography resolutions served from the cache",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_geography_cache_misses_total",
		Help: "Geography resolutions that fell through to the source",
	})
)

// Cache is a Redis read-through decorator over another Lookup. Geography is
// mostly static, so hits avoid a network round trip on every approval and
// activation. Negative results are not cached: a missing ward is usually an
// operator data-entry problem that gets fixed, and a stale negative would
// block approvals.
type Cache struct {
	inner  Lookup
	client redis.Cmdable
	ttl    time.Duration
}

func NewCache(inner Lookup, client redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{inner: inner, client: client, ttl: ttl}
}

func (c *Cache) Resolve(ctx context.Context, ref string) (Node, error) {
	cacheKey := "quorum:geo:" + ref

	cached, err := c.client.Get(ctx, cacheKey).Result()
	if err == nil {
		var node Node
		if err := json.Unmarshal([]byte(cached), &node); err == nil {
			cacheHits.Inc()
			return node, nil
		}
		// Corrupt entry: fall through to the inner lookup and overwrite.
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down must not block validation; skip to the inner lookup.
		node, innerErr := c.inner.Resolve(ctx, ref)
		return node, innerErr
	}

	cacheMisses.Inc()
	node, err := c.inner.Resolve(ctx, ref)
	if err != nil {
		return Node{}, err
	}

	encoded, err := json.Marshal(node)
	if err != nil {
		return Node{}, fmt.Errorf("encode geography node: %w", err)
	}
	// Best effort: a failed SET only costs the next caller a lookup.
	_ = c.client.Set(ctx, cacheKey, encoded, c.ttl).Err()
	return node, nil
}
