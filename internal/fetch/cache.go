// Package fetch caches and deduplicates read requests by key. A key is the
// endpoint plus its parameters, so changing a filter (page, search, class)
// changes the key and triggers a fresh fetch.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/schoolctl/internal/log"
)

// Key identifies a cached read.
type Key struct {
	Endpoint string
	Params   url.Values
}

// NewKey creates a key. Empty parameter values are dropped.
func NewKey(endpoint string, params url.Values) Key {
	clean := url.Values{}
	for name, values := range params {
		for _, v := range values {
			if v != "" {
				clean.Add(name, v)
			}
		}
	}
	return Key{Endpoint: endpoint, Params: clean}
}

// String returns the canonical form: endpoint and sorted parameters.
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Endpoint
	}
	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.Endpoint)
	for i, name := range names {
		values := append([]string(nil), k.Params[name]...)
		sort.Strings(values)
		for j, v := range values {
			if i == 0 && j == 0 {
				b.WriteByte('?')
			} else {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Hash returns the blake3 digest of the canonical form.
func (k Key) Hash() string {
	sum := blake3.Sum256([]byte(k.String()))
	return fmt.Sprintf("%x", sum[:])
}

type entry struct {
	endpoint string
	value    any
	storedAt time.Time
}

// Cache holds fetched values until they are invalidated or expire.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires entries after ttl. Zero keeps them until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
		logger:  log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key or runs fetch. Concurrent calls with
// the same key share one fetch. Errors are returned to every waiter and
// never cached.
//
// The shared fetch runs without the starting caller's cancellation, so one
// cancelled caller does not fail the others; a cancelled caller stops
// waiting and gets its own ctx.Err().
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	hash := key.Hash()

	if v, ok := c.lookup(hash); ok {
		if typed, ok := v.(T); ok {
			c.logger.DebugContext(ctx, "fetch cache hit", "key", key.String())
			return typed, nil
		}
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(hash, func() (any, error) {
		value, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(hash, key.Endpoint, value)
		return value, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	c.logger.DebugContext(ctx, "fetch cache miss", "key", key.String(), "shared", res.Shared)
	if res.Err != nil {
		return zero, res.Err
	}
	v := res.Val
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cached value for %s has type %T", key, v)
	}
	return typed, nil
}

// Revalidate drops key and fetches it again.
func Revalidate[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	c.Delete(key)
	return Get(ctx, c, key, fetch)
}

func (c *Cache) lookup(hash string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[hash]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(hash, endpoint string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = entry{endpoint: endpoint, value: value, storedAt: c.now()}
}

// Mutate replaces the cached value for key without fetching.
func (c *Cache) Mutate(key Key, value any) {
	c.store(key.Hash(), key.Endpoint, value)
}

// Delete drops key.
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.Hash())
}

// Invalidate drops every entry whose endpoint starts with prefix and returns
// how many were dropped.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for hash, e := range c.entries {
		if strings.HasPrefix(e.endpoint, prefix) {
			delete(c.entries, hash)
			n++
		}
	}
	return n
}

// Reset drops everything.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
