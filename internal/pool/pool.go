// Package pool provides the bounded fan-out shared by feed aggregation,
// candidate validation and map-phase summarization.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Limit clamps a requested concurrency to min(limit, max(1, n)).
func Limit(limit, n int) int {
	if n < 1 {
		n = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > n {
		return n
	}
	return limit
}

// Run calls fn once for every item with at most limit calls in flight and
// returns after all items have been attempted. fn owns its own failure
// handling; nothing it does aborts the remaining items.
func Run[T any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, idx int, item T)) {
	if len(items) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(Limit(limit, len(items)))
	for i, item := range items {
		g.Go(func() error {
			fn(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()
}

// Map runs fn over items like Run and collects the successful results.
// Results are merged after the pool drains, in input order; items for
// which fn reports ok=false are omitted.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, bool)) []R {
	type slot struct {
		val R
		ok  bool
	}
	slots := make([]slot, len(items))
	Run(ctx, items, limit, func(ctx context.Context, idx int, item T) {
		v, ok := fn(ctx, item)
		slots[idx] = slot{val: v, ok: ok}
	})
	out := make([]R, 0, len(items))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.val)
		}
	}
	return out
}
