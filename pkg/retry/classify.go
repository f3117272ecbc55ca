package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Classification tags a vendor failure with the retry policy it falls under.
type Classification int

const (
	// ClassFatal marks permanent failures: bad requests, auth failures,
	// programming errors. Never retried.
	ClassFatal Classification = iota
	// ClassRetryable marks transient failures: 429/5xx, transport
	// timeouts and resets.
	ClassRetryable
	// ClassNotFound marks absence of the requested resource, surfaced to
	// callers as a defined outcome rather than an error.
	ClassNotFound
	// ClassConflict marks an already-exists signal on a create, usually
	// treated as idempotent success.
	ClassConflict
)

func (c Classification) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassNotFound:
		return "not-found"
	case ClassConflict:
		return "conflict"
	default:
		return "fatal"
	}
}

// Classify maps a non-nil failure from a vendor call to its retry policy.
// The mapping is provider policy, not a heuristic: retrying a fatal error
// duplicates side effects, giving up on a transient one fails work that
// would have succeeded.
func Classify(err error) Classification {
	if err == nil {
		return ClassFatal
	}

	// Caller cancellation and deadline expiry are never retried. Checked
	// before the net.Error timeout probe because context.DeadlineExceeded
	// also reports Timeout() == true.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}

	// Already classified upstream.
	if errors.Is(err, ErrNotFound) {
		return ClassNotFound
	}
	if errors.Is(err, ErrAlreadyExists) {
		return ClassConflict
	}

	// GCS object/bucket absence is reported via dedicated sentinels
	// instead of a googleapi.Error.
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return ClassNotFound
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyHTTPStatus(gerr.Code)
	}

	if c, ok := classifyKubernetes(err); ok {
		return c
	}

	return classifyTransport(err)
}

func classifyHTTPStatus(code int) Classification {
	switch code {
	case http.StatusNotFound:
		return ClassNotFound
	case http.StatusConflict:
		return ClassConflict
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return ClassRetryable
	}
	if code >= 500 {
		return ClassRetryable
	}
	return ClassFatal
}

func classifyKubernetes(err error) (Classification, bool) {
	switch {
	case apierrors.IsNotFound(err):
		return ClassNotFound, true
	case apierrors.IsAlreadyExists(err):
		return ClassConflict, true
	// Optimistic-concurrency conflicts on update succeed on re-read, so
	// they retry rather than surfacing as ClassConflict.
	case apierrors.IsConflict(err),
		apierrors.IsTooManyRequests(err),
		apierrors.IsServerTimeout(err),
		apierrors.IsServiceUnavailable(err),
		apierrors.IsInternalError(err),
		apierrors.IsTimeout(err),
		apierrors.IsUnexpectedServerError(err):
		return ClassRetryable, true
	}
	if status := apierrors.APIStatus(nil); errors.As(err, &status) {
		// Any other structured API status is a permanent failure.
		return ClassFatal, true
	}
	return ClassFatal, false
}

func classifyTransport(err error) Classification {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ClassRetryable
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return ClassRetryable
	}
	return ClassFatal
}
