// Package ctxutil provides shared context key accessors.
//
// The orchestrator stamps every stage call with the batch ID; the image and
// upload agents read it back for logging and hash records. Both sides import
// ctxutil instead of each other. Per-item correlation IDs travel as plain
// values on requests and results, not through the context.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const keyBatchID contextKey = "batch_id"

// WithBatchID returns a new context carrying the batch ID.
func WithBatchID(ctx context.Context, batchID uuid.UUID) context.Context {
	return context.WithValue(ctx, keyBatchID, batchID)
}

// BatchIDFromContext extracts the batch ID from the context.
func BatchIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(keyBatchID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
