package retry

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel results converted from vendor failures at the core boundary.
// Callers test them with errors.Is (or the helpers below) and must never see
// the raw vendor error types behind them.
var (
	// ErrNotFound reports that the requested remote resource is absent.
	// Absence is a defined outcome, not a failure, and is never retried.
	ErrNotFound = errors.New("requested resource was not found")

	// ErrAlreadyExists reports that a create hit an existing resource.
	// Callers typically treat this as idempotent success.
	ErrAlreadyExists = errors.New("resource already exists")
)

// ExhaustedError is returned when every configured attempt failed with a
// retryable error. It carries the last underlying cause.
type ExhaustedError struct {
	Target   string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Target, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// PollTimeoutError is returned when a long-running operation did not reach a
// terminal state within the polling budget. The remote mutation may still
// complete out-of-band, so this is a recoverable condition distinct from
// operation failure.
type PollTimeoutError struct {
	Target  string
	Polls   int
	Elapsed time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("%s: operation not terminal after %d polls in %s; it may still complete remotely",
		e.Target, e.Polls, e.Elapsed.Round(time.Millisecond))
}

// IsNotFound reports whether err represents resource absence.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err represents an already-existing resource.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsExhausted reports whether err is a spent retry budget.
func IsExhausted(err error) bool {
	var e *ExhaustedError
	return errors.As(err, &e)
}

// IsPollTimeout reports whether err is a long-running operation poll timeout.
func IsPollTimeout(err error) bool {
	var e *PollTimeoutError
	return errors.As(err, &e)
}
