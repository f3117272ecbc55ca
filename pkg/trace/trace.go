// Package trace carries a per-request correlation identifier through a call
// chain so every retry attempt and log line of one logical operation can be
// correlated.
package trace

import (
	"context"

	"github.com/google/uuid"
)

// ID is an opaque correlation token. It is generated once at the boundary of
// a logical operation and never mutated afterwards.
type ID string

// LogKey is the structured-logging key under which trace IDs are emitted.
const LogKey = "trace"

type ctxKey struct{}

// New returns a fresh trace ID.
func New() ID {
	return ID(uuid.NewString())
}

// Into returns a child context carrying the given trace ID.
func Into(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the trace ID carried by ctx, or "" if none is attached.
func From(ctx context.Context) ID {
	if id, ok := ctx.Value(ctxKey{}).(ID); ok {
		return id
	}
	return ""
}

// Ensure returns ctx and its trace ID, attaching a freshly generated one if
// the context does not carry an ID yet.
func Ensure(ctx context.Context) (context.Context, ID) {
	if id := From(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return Into(ctx, id), id
}
