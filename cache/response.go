package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/airelay/observe"
)

// Option configures a ResponseCache.
type Option func(*options)

type options struct {
	policy       Policy
	logger       observe.Logger
	metrics      observe.Metrics
	singleFlight bool
}

// WithPolicy sets the TTL policy used by Set when no TTL is given.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the logger for store failures and hit/miss debug records.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the recorder for hit/miss counts.
func WithMetrics(m observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSingleFlight makes concurrent misses for the same key share one
// generator call. Without it every concurrent miss generates independently.
func WithSingleFlight() Option {
	return func(o *options) { o.singleFlight = true }
}

// ResponseCache stores generated values of type T in a Store as JSON.
//
// The cache never fails a request: store and codec failures are logged and
// behave as a miss (reads) or a no-op (writes).
type ResponseCache[T any] struct {
	store   Store
	policy  Policy
	logger  observe.Logger
	metrics observe.Metrics
	group   *singleflight.Group
}

// New creates a ResponseCache over store.
func New[T any](store Store, opts ...Option) *ResponseCache[T] {
	o := options{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = observe.NopLogger()
	}
	if o.metrics == nil {
		o.metrics = observe.NoopMetrics()
	}

	c := &ResponseCache[T]{
		store:   store,
		policy:  o.policy,
		logger:  o.logger,
		metrics: o.metrics,
	}
	if o.singleFlight {
		c.group = &singleflight.Group{}
	}
	return c
}

// Get returns the cached value for key.
func (c *ResponseCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	if c.store == nil || ValidateKey(key) != nil {
		return zero, false
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "cache get failed", observe.F("key", key), observe.Err(err))
		c.record(ctx, key, false)
		return zero, false
	}
	if !ok {
		c.record(ctx, key, false)
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn(ctx, "cache entry undecodable, dropping", observe.F("key", key), observe.Err(err))
		c.Invalidate(ctx, key)
		c.record(ctx, key, false)
		return zero, false
	}
	c.record(ctx, key, true)
	return v, true
}

// Set stores value under key. A zero ttl selects the policy's short tier.
func (c *ResponseCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	if c.store == nil {
		return
	}
	if err := ValidateKey(key); err != nil {
		c.logger.Debug(ctx, "cache set skipped", observe.F("key", key), observe.Err(err))
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn(ctx, "cache value unencodable", observe.F("key", key), observe.Err(err))
		return
	}
	ttl = c.policy.EffectiveTTL(ttl)
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.logger.Warn(ctx, "cache set failed", observe.F("key", key), observe.Err(err))
	}
}

// Invalidate removes key.
func (c *ResponseCache[T]) Invalidate(ctx context.Context, key string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn(ctx, "cache invalidate failed", observe.F("key", key), observe.Err(err))
	}
}

// Clear removes every entry in the store.
func (c *ResponseCache[T]) Clear(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn(ctx, "cache clear failed", observe.Err(err))
	}
}

// GetOrGenerate returns the cached value for key, or calls generate, stores
// its result for ttl and returns it. Generation errors are returned as-is
// and never cached.
func (c *ResponseCache[T]) GetOrGenerate(
	ctx context.Context,
	key string,
	ttl time.Duration,
	generate func(context.Context) (T, error),
) (T, error) {
	v, _, err := c.Fetch(ctx, key, ttl, generate)
	return v, err
}

// fetched is the single-flight payload. Wrapping the value keeps the type
// assertion safe when T is an interface and the value is nil.
type fetched[T any] struct {
	value  T
	stored bool
}

// Fetch is GetOrGenerate that also reports whether the value was served
// from the store. A caller that joins another caller's in-flight generation
// gets stored == false.
func (c *ResponseCache[T]) Fetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	generate func(context.Context) (T, error),
) (T, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}

	if c.group == nil || ValidateKey(key) != nil {
		v, err := c.generate(ctx, key, ttl, generate)
		return v, false, err
	}

	res, err, shared := c.group.Do(key, func() (any, error) {
		// Another flight may have filled the key while this one queued.
		if v, ok := c.Get(ctx, key); ok {
			return fetched[T]{value: v, stored: true}, nil
		}
		v, err := c.generate(ctx, key, ttl, generate)
		return fetched[T]{value: v}, err
	})
	if shared {
		c.logger.Debug(ctx, "cache generation shared", observe.F("key", key))
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	f, _ := res.(fetched[T])
	return f.value, f.stored, nil
}

func (c *ResponseCache[T]) generate(
	ctx context.Context,
	key string,
	ttl time.Duration,
	generate func(context.Context) (T, error),
) (T, error) {
	v, err := generate(ctx)
	if err != nil {
		return v, err
	}
	c.Set(ctx, key, v, ttl)
	return v, nil
}

func (c *ResponseCache[T]) record(ctx context.Context, key string, hit bool) {
	c.metrics.RecordCacheLookup(ctx, hit)
	if hit {
		c.logger.Debug(ctx, "cache hit", observe.F("key", key))
		return
	}
	c.logger.Debug(ctx, "cache miss", observe.F("key", key))
}
