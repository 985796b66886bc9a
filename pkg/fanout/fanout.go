// Package fanout runs independent operations concurrently and joins them.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Op is one unit of work.
type Op[T any] func(ctx context.Context) (T, error)

// Option configures RunAll.
type Option func(*config)

type config struct {
	limit int
}

// WithLimit bounds the number of operations running at once. Zero or a
// negative limit means one goroutine per operation.
func WithLimit(n int) Option {
	return func(c *config) {
		c.limit = n
	}
}

// RunAll runs every op on its own goroutine and blocks until all of them have
// returned. Results are in input order regardless of completion order.
//
// If any op fails, RunAll still waits for the rest and then returns the first
// failure observed. Siblings are not cancelled: ops receive ctx as given, not a
// context derived from the group.
func RunAll[T any](ctx context.Context, ops []Op[T], opts ...Option) ([]T, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make([]T, len(ops))
	var g errgroup.Group
	if cfg.limit > 0 {
		g.SetLimit(cfg.limit)
	}

	for i, op := range ops {
		i, op := i, op
		g.Go(func() error {
			r, err := op(ctx)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
