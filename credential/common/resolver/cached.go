package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"

	"github.com/pilacorp/go-ethr-vc/did"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// Cached decorates a resolver with an LRU cache of documents. Fragments are
// answered from the cached document; failures are never cached.
type Cached struct {
	next  Resolver
	cache gcache.Cache
}

// CacheOption configures a Cached resolver.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	size int
	ttl  time.Duration
}

// WithCacheSize sets the maximum number of cached documents.
func WithCacheSize(size int) CacheOption {
	return func(c *cacheConfig) {
		c.size = size
	}
}

// WithCacheTTL sets how long a document stays cached.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *cacheConfig) {
		c.ttl = ttl
	}
}

// NewCached wraps next with a cache.
func NewCached(next Resolver, opts ...CacheOption) *Cached {
	cfg := cacheConfig{size: defaultCacheSize, ttl: defaultCacheTTL}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Cached{
		next:  next,
		cache: gcache.New(cfg.size).LRU().Expiration(cfg.ttl).Build(),
	}
}

// Supports implements Resolver.
func (c *Cached) Supports(id string) bool {
	return c.next.Supports(id)
}

// Resolve implements Resolver.
func (c *Cached) Resolve(ctx context.Context, id string) (*Resolution, error) {
	base, _ := did.SplitURL(id)
	key := did.Normalize(base)

	if v, err := c.cache.Get(key); err == nil {
		return fromDocument(v.(*did.DIDDocument), id)
	}

	res, err := c.next.Resolve(ctx, base)
	if err != nil {
		return nil, err
	}
	if res.Document == nil {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, base)
	}
	_ = c.cache.Set(key, res.Document)

	return fromDocument(res.Document, id)
}

// Purge drops every cached document.
func (c *Cached) Purge() {
	c.cache.Purge()
}
