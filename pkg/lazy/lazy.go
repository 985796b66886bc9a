// Package lazy provides a memoized, optionally expiring accessor around a
// remote fetch.
//
// A Value fetches on the first Get and returns the memoized result afterwards.
// Concurrent callers never trigger more than one in-flight fetch: they wait for
// the fetch that is already running and observe its result, success or
// failure. Failed fetches are not cached, so the next Get retries.
//
// Snapshot turns a Value into a constant that never fetches again, for callers
// that must keep a credential usable after the remote store goes away.
package lazy

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FetchFunc retrieves the underlying value.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Value is a thread-safe memoized accessor.
type Value[T any] struct {
	mu    sync.Mutex
	fetch FetchFunc[T]
	ttl   time.Duration
	now   func() time.Time

	resolved  bool
	value     T
	expiresAt time.Time
	inflight  *call[T]
}

// Option configures a Value.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a Value that resolves once and keeps the result forever.
func New[T any](fetch FetchFunc[T], opts ...Option) *Value[T] {
	return NewExpiring(fetch, 0, opts...)
}

// NewExpiring creates a Value whose result is discarded ttl after it was
// fetched. A ttl of zero or less never expires.
func NewExpiring[T any](fetch FetchFunc[T], ttl time.Duration, opts ...Option) *Value[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Value[T]{
		fetch: fetch,
		ttl:   ttl,
		now:   o.now,
	}
}

// Of returns an already resolved Value bound to v.
func Of[T any](v T) *Value[T] {
	return &Value[T]{
		fetch: func(context.Context) (T, error) {
			return v, nil
		},
		now:      time.Now,
		resolved: true,
		value:    v,
	}
}

// Get returns the resolved value, fetching it if it is unresolved or expired.
//
// Only one fetch runs at a time. Callers arriving while it is in flight wait
// for it and share its outcome, failure included; a Get that starts after a
// failure has settled fetches again. A waiter whose ctx ends stops waiting
// and returns ctx.Err() without affecting the fetch.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	for {
		v.mu.Lock()
		if v.fresh() {
			value := v.value
			v.mu.Unlock()
			return value, nil
		}

		c := v.inflight
		if c == nil {
			c = &call[T]{done: make(chan struct{})}
			v.inflight = c
			v.mu.Unlock()
			v.run(ctx, c)
			return c.value, c.err
		}
		v.mu.Unlock()

		select {
		case <-c.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
		// The fetch was abandoned by its own caller, not by this one.
		if c.abandoned && ctx.Err() == nil {
			continue
		}
		return c.value, c.err
	}
}

// call is one in-flight fetch. Its fields are written before done is closed
// and only read after.
type call[T any] struct {
	done      chan struct{}
	value     T
	err       error
	abandoned bool
}

var errFetchPanicked = errors.New("lazy: fetch panicked")

func (v *Value[T]) run(ctx context.Context, c *call[T]) {
	completed := false
	defer func() {
		v.mu.Lock()
		if !completed {
			c.err = errFetchPanicked
		}
		if c.err == nil {
			v.value = c.value
			v.resolved = true
			if v.ttl > 0 {
				v.expiresAt = v.now().Add(v.ttl)
			}
		} else {
			var zero T
			c.value = zero
			c.abandoned = ctx.Err() != nil
		}
		v.inflight = nil
		close(c.done)
		v.mu.Unlock()
	}()

	c.value, c.err = v.fetch(ctx)
	completed = true
}

// Resolved reports whether a fresh value is currently held.
func (v *Value[T]) Resolved() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fresh()
}

// ExpiresAt returns when the held value expires. The zero time means the value
// is unresolved or never expires.
func (v *Value[T]) ExpiresAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.resolved || v.ttl <= 0 {
		return time.Time{}
	}
	return v.expiresAt
}

// Invalidate drops the held value; the next Get fetches again.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.value = zero
	v.resolved = false
	v.expiresAt = time.Time{}
}

// fresh must be called with mu held.
func (v *Value[T]) fresh() bool {
	if !v.resolved {
		return false
	}
	if v.ttl <= 0 {
		return true
	}
	return v.now().Before(v.expiresAt)
}

// Snapshot resolves v now, with the same at-most-once and failure semantics as
// Get, and returns a Value that yields the captured result forever without
// touching v's fetch function again.
func Snapshot[T any](ctx context.Context, v *Value[T]) (*Value[T], error) {
	value, err := v.Get(ctx)
	if err != nil {
		return nil, err
	}
	return Of(value), nil
}
