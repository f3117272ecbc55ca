// Package gate provides admission control for blocking vendor calls. The
// underlying SDK calls block an OS thread on network I/O, so the number of
// calls in flight must stay bounded independent of how many goroutines want
// to issue them.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultSize is the number of concurrent vendor calls permitted when no
// explicit bound is configured.
const DefaultSize = 16

// Gate bounds how many guarded operations may run simultaneously. A Gate may
// additionally carry a rate limiter that throttles admissions per second on
// top of the concurrency bound.
type Gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	size    int
}

// New creates a Gate admitting at most size concurrent operations. A size of
// zero or less falls back to DefaultSize.
func New(size int) *Gate {
	if size <= 0 {
		size = DefaultSize
	}
	return &Gate{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// WithLimiter attaches a token-bucket rate limiter applied before admission.
// Returns the gate for chaining.
func (g *Gate) WithLimiter(r rate.Limit, burst int) *Gate {
	g.limiter = rate.NewLimiter(r, burst)
	return g
}

// Acquire blocks the calling goroutine until a slot is free or ctx is done.
// Every successful Acquire must be paired with exactly one Release.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return g.sem.Acquire(ctx, 1)
}

// Release frees a slot obtained via Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Size returns the configured concurrency bound.
func (g *Gate) Size() int {
	return g.size
}
