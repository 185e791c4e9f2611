package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedProvider wraps a Provider with a Redis cache keyed by the query
// text and model. Concurrent identical queries share a single upstream
// call via singleflight. Cache failures degrade to direct provider calls.
type CachedProvider struct {
	inner  Provider
	redis  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewCachedProvider creates a caching wrapper around inner. A zero ttl
// means entries never expire.
func NewCachedProvider(inner Provider, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		inner:  inner,
		redis:  client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "embedding_cache")),
	}
}

// Name returns the wrapped provider's name.
func (c *CachedProvider) Name() string { return c.inner.Name() }

// Dimensions returns the wrapped provider's dimensionality.
func (c *CachedProvider) Dimensions() int { return c.inner.Dimensions() }

// Embed delegates to the wrapped provider. Batch requests bypass the
// cache; only single-query lookups are hot enough to cache.
func (c *CachedProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	return c.inner.Embed(ctx, req)
}

func (c *CachedProvider) cacheKey(query string) string {
	sum := sha256.Sum256([]byte(c.inner.Name() + ":" + query))
	return "supportflow:emb:" + hex.EncodeToString(sum[:])
}

// EmbedQuery returns a cached embedding when available, otherwise calls
// the wrapped provider and stores the result.
func (c *CachedProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	key := c.cacheKey(query)

	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var vec []float64
		if err := json.Unmarshal(raw, &vec); err == nil {
			return vec, nil
		}
		c.logger.Warn("dropping corrupt cache entry", zap.String("key", key))
		c.redis.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("cache read failed", zap.Error(err))
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		vec, err := c.inner.EmbedQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(vec); err == nil {
			if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("cache write failed", zap.Error(err))
			}
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}
