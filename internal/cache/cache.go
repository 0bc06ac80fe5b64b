// Package cache memoizes query reads.
//
// A Cache is installed as query middleware:
//
//	c := cache.New(cache.WithTTL(time.Minute))
//	q := query.New(s, db, query.WithMiddleware(c.Middleware))
//
// Reads are keyed by their fingerprint. An entry is served while it is
// younger than the TTL and evicted the first time it is read after that.
// Any successful insert, update or delete clears the whole cache, whatever
// table it touched.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/criteria"
	"github.com/viggyfresh/prom/internal/fingerprint"
	"github.com/viggyfresh/prom/internal/query"
	"github.com/viggyfresh/prom/internal/schema"
)

// DefaultTTL is how long entries live unless WithTTL says otherwise.
const DefaultTTL = time.Hour

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Cache is a TTL cache of read results.
type Cache struct {
	ttl     time.Duration
	clock   Clock
	store   Store
	metrics *Metrics
	logger  *slog.Logger

	lastHit bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the entry lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock used for expiry.
func WithClock(clock Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithStore replaces the in-memory store.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithMetrics records hits, misses and invalidations to m.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:    DefaultTTL,
		clock:  systemClock{},
		store:  NewMemoryStore(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cache")
	return c
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// LastHit reports whether the most recent operation was served from the
// cache. Writes always clear it.
func (c *Cache) LastHit() bool {
	return c.lastHit
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Fingerprint returns the cache key for a read. ok is false when the
// criteria hold values with no canonical form.
func (c *Cache) Fingerprint(op backend.Operation, s *schema.Schema, set *criteria.Set) (string, bool) {
	key, err := fingerprint.Compute(string(op), s.Table, set)
	if err != nil {
		c.logger.Debug("query not cacheable", "op", op, "table", s.Table, "error", err)
		return "", false
	}
	return key, true
}

// Get returns a copy of the entry stored under key if it has not expired.
// An expired entry is deleted.
func (c *Cache) Get(key string) (backend.Result, bool) {
	e, ok := c.store.Get(key)
	if !ok {
		return backend.Result{}, false
	}
	if c.clock.Now().Sub(e.StoredAt) >= c.ttl {
		c.store.Delete(key)
		c.metrics.setEntries(c.store.Len())
		return backend.Result{}, false
	}
	return e.Result.Clone(), true
}

// Set stores a copy of res under key.
func (c *Cache) Set(key string, res backend.Result) {
	c.store.Set(key, Entry{StoredAt: c.clock.Now(), Result: res.Clone()})
	c.metrics.setEntries(c.store.Len())
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	c.store.Clear()
	c.metrics.recordInvalidation()
	c.metrics.setEntries(0)
}

// Middleware serves reads from the cache and clears it after writes.
func (c *Cache) Middleware(next query.Executor) query.Executor {
	return query.ExecutorFunc(func(ctx context.Context, op backend.Operation, req query.Request) (backend.Result, error) {
		if op.IsWrite() {
			c.lastHit = false
			res, err := next.Execute(ctx, op, req)
			if err == nil {
				c.logger.Debug("write, clearing cache", "op", op, "table", req.Schema.Table)
				c.Invalidate()
			}
			return res, err
		}

		c.lastHit = false
		key, ok := c.Fingerprint(op, req.Schema, req.Set)
		if !ok {
			return next.Execute(ctx, op, req)
		}

		if res, hit := c.Get(key); hit {
			c.lastHit = true
			c.metrics.recordHit()
			return res, nil
		}
		c.metrics.recordMiss()

		res, err := next.Execute(ctx, op, req)
		if err != nil {
			return res, err
		}
		c.Set(key, res)
		return res, nil
	})
}
