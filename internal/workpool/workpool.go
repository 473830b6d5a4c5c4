// Package workpool implements spec §5's bounded CPU-worker pool: a small,
// fixed number of worker goroutines (default 4) draining a queue of
// per-stream signal tasks (fingerprinting, checksum-set generation).
// Results may become observable out of submission order; each carries its
// origin index so the main thread can fold them back in positionally
// (spec §5 "Ordering guarantees").
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"
)

// DefaultWorkers is the pool size used when callers don't override it
// (spec §5: "configured, default 4").
const DefaultWorkers = 4

// Result is one task's outcome, tagged with the index it was submitted
// under.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Map runs fn(ctx, i) for every i in [0, n), bounded to workers concurrent
// goroutines (workers <= 0 defaults to DefaultWorkers), and returns one
// Result per index. A per-task error that isn't sndchkerr.Fatal is
// recorded on that Result only — "the signal engine recovers nothing"
// means a stream failure doesn't stop its siblings (spec §7 propagation
// policy); the only thing that stops the whole pool early is a fatal
// (resource/clock) error, which Map returns directly.
func Map[T any](ctx context.Context, workers, n int, fn func(ctx context.Context, index int) (T, error)) ([]Result[T], error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]Result[T], n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := fn(gctx, i)
			results[i] = Result[T]{Index: i, Value: v, Err: err}
			if err != nil && sndchkerr.Fatal(err) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
