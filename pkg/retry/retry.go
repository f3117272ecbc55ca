// Package retry implements the request-execution core shared by all resource
// wrappers: bounded, classified, trace-correlated retries of blocking vendor
// calls, plus polling of long-running operations to a terminal state.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/gcloud-clients/pkg/gate"
	"github.com/telekom/gcloud-clients/pkg/metrics"
	"github.com/telekom/gcloud-clients/pkg/trace"
)

// loggerOrDefault returns the first non-nil logger, falling back to the
// global zap.S() logger.
func loggerOrDefault(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log != nil {
		return log
	}
	return zap.S()
}

// Executor runs vendor call closures under admission control, classifying
// failures and retrying transient ones with exponential backoff. Attempts
// within one invocation are strictly sequential.
type Executor struct {
	gate *gate.Gate
	cfg  Config
	log  *zap.SugaredLogger
}

// NewExecutor creates an Executor sharing the given gate. A nil gate gets a
// default-sized one; a zero cfg gets DefaultConfig values.
func NewExecutor(g *gate.Gate, cfg Config, log *zap.SugaredLogger) (*Executor, error) {
	if g == nil {
		g = gate.New(0)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Executor{
		gate: g,
		cfg:  cfg,
		log:  loggerOrDefault(log).With("component", "RetryExecutor"),
	}, nil
}

// Config returns the executor's effective retry policy.
func (e *Executor) Config() Config { return e.cfg }

// Gate returns the admission gate shared by this executor.
func (e *Executor) Gate() *gate.Gate { return e.gate }

// Do runs op until it succeeds, fails permanently, resolves to a defined
// non-error outcome (absence, conflict) or the retry budget is spent.
// desc names the call in logs and metrics. A trace ID is taken from ctx or
// generated at this boundary and tagged on every attempt.
//
// Not-found and already-exists outcomes come back as ErrNotFound and
// ErrAlreadyExists; a spent budget comes back as *ExhaustedError wrapping
// the last transient cause.
func (e *Executor) Do(ctx context.Context, desc string, op func(ctx context.Context) error) error {
	ctx, id := trace.Ensure(ctx)
	log := e.log.With(trace.LogKey, string(id), "target", desc)

	bo := e.cfg.newBackOff()
	for attempt := 1; ; attempt++ {
		metrics.CallAttempts.WithLabelValues(desc).Inc()
		log.Debugw("starting attempt", "attempt", attempt)

		err := e.runOnce(ctx, desc, op)
		if err == nil {
			log.Debugw("attempt succeeded", "attempt", attempt)
			return nil
		}

		switch class := Classify(err); class {
		case ClassNotFound:
			log.Debugw("resource absent", "attempt", attempt)
			return fmt.Errorf("%s: %w", desc, ErrNotFound)

		case ClassConflict:
			log.Debugw("resource already exists", "attempt", attempt)
			return fmt.Errorf("%s: %w", desc, ErrAlreadyExists)

		case ClassRetryable:
			if attempt >= e.cfg.MaxAttempts {
				metrics.CallsExhausted.WithLabelValues(desc).Inc()
				log.Errorw("retries exhausted", "attempts", attempt, "error", err)
				return &ExhaustedError{Target: desc, Attempts: attempt, Last: err}
			}
			// The gate permit is already released here, so this
			// sleep never starves unrelated calls.
			delay := bo.NextBackOff()
			metrics.CallRetries.WithLabelValues(desc).Inc()
			log.Warnw("transient failure, backing off",
				"attempt", attempt, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: aborted during backoff: %w", desc, ctx.Err())
			case <-time.After(delay):
			}

		default: // ClassFatal
			metrics.CallsFatal.WithLabelValues(desc).Inc()
			log.Errorw("permanent failure", "attempt", attempt, "error", err)
			return fmt.Errorf("%s: %w", desc, err)
		}
	}
}

// runOnce executes a single attempt with a gate permit held. The permit is
// released on every exit path, including panics and cancellation.
func (e *Executor) runOnce(ctx context.Context, desc string, op func(ctx context.Context) error) error {
	if err := e.gate.Acquire(ctx); err != nil {
		return err
	}
	defer e.gate.Release()

	start := time.Now()
	err := op(ctx)
	metrics.CallDuration.WithLabelValues(desc).Observe(time.Since(start).Seconds())
	return err
}

// Do runs a result-producing vendor call through exec with the same retry
// semantics as Executor.Do.
func Do[T any](ctx context.Context, exec *Executor, desc string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := exec.Do(ctx, desc, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
