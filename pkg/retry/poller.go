package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/gcloud-clients/pkg/metrics"
	"github.com/telekom/gcloud-clients/pkg/trace"
)

// Operation is a handle to a long-running remote mutation. The handle is
// immutable; Poll issues one raw status query against the vendor without any
// retry logic of its own.
type Operation interface {
	// Describe names the operation for logs and metrics.
	Describe() string
	// Poll queries the remote status once.
	Poll(ctx context.Context) (OperationStatus, error)
}

// OperationStatus is the outcome of one status query.
type OperationStatus struct {
	// Done is true once the vendor reports a terminal state.
	Done bool
	// Err carries the vendor-reported failure of a terminal operation.
	Err error
}

// PollConfig bounds how long a Poller waits for an operation to become
// terminal. The zero value is usable.
type PollConfig struct {
	// Interval spaces consecutive status queries.
	Interval time.Duration
	// MaxPolls caps the number of status queries.
	MaxPolls int
	// Deadline caps the total wall-clock wait.
	Deadline time.Duration
}

// DefaultPollConfig matches the vendor's guidance for instance and cluster
// mutations: poll every 5s for at most 10 minutes.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval: 5 * time.Second,
		MaxPolls: 120,
		Deadline: 10 * time.Minute,
	}
}

func (c *PollConfig) applyDefaults() {
	def := DefaultPollConfig()
	if c.Interval == 0 {
		c.Interval = def.Interval
	}
	if c.MaxPolls == 0 {
		c.MaxPolls = def.MaxPolls
	}
	if c.Deadline == 0 {
		c.Deadline = def.Deadline
	}
}

// Poller drives long-running operations to a terminal state. Each status
// query goes through the executor, so transient polling failures are
// themselves retried.
type Poller struct {
	exec *Executor
	cfg  PollConfig
	log  *zap.SugaredLogger
}

// NewPoller creates a Poller issuing status queries through exec.
func NewPoller(exec *Executor, cfg PollConfig, log *zap.SugaredLogger) *Poller {
	cfg.applyDefaults()
	return &Poller{
		exec: exec,
		cfg:  cfg,
		log:  loggerOrDefault(log).With("component", "OperationPoller"),
	}
}

// Wait polls op until it reaches a terminal state. It returns nil on vendor
// success, the vendor error on terminal failure, and *PollTimeoutError when
// the poll budget or deadline is spent first. A timed-out operation may
// still complete remotely; callers must treat the timeout as recoverable,
// never as silent success.
func (p *Poller) Wait(ctx context.Context, op Operation) error {
	ctx, id := trace.Ensure(ctx)
	desc := op.Describe()
	log := p.log.With(trace.LogKey, string(id), "target", desc)

	start := time.Now()
	deadline := start.Add(p.cfg.Deadline)

	for polls := 1; ; polls++ {
		metrics.OperationPolls.WithLabelValues(desc).Inc()
		status, err := Do(ctx, p.exec, desc+"/poll", op.Poll)
		if err != nil {
			return fmt.Errorf("polling %s: %w", desc, err)
		}
		if status.Done {
			if status.Err != nil {
				metrics.OperationFailures.WithLabelValues(desc).Inc()
				log.Errorw("operation failed", "polls", polls, "error", status.Err)
				return fmt.Errorf("%s: %w", desc, status.Err)
			}
			log.Debugw("operation done", "polls", polls, "elapsed", time.Since(start))
			return nil
		}

		if polls >= p.cfg.MaxPolls || time.Now().Add(p.cfg.Interval).After(deadline) {
			metrics.OperationTimeouts.WithLabelValues(desc).Inc()
			log.Warnw("operation still pending at budget end", "polls", polls, "elapsed", time.Since(start))
			return &PollTimeoutError{Target: desc, Polls: polls, Elapsed: time.Since(start)}
		}

		log.Debugw("operation pending", "polls", polls)
		select {
		case <-ctx.Done():
			return fmt.Errorf("polling %s: %w", desc, ctx.Err())
		case <-time.After(p.cfg.Interval):
		}
	}
}
