// Package vectorstore defines the vector index contract and its adapters.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the store backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrDimensionMismatch indicates a vector whose dimension differs from
	// the collection's. Mixing dimensions is an invariant violation, not a
	// recoverable condition.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyFilter is returned when a delete is attempted with no
	// constraints at all.
	ErrEmptyFilter = errors.New("delete filter cannot be empty")
)

// Store is the interface for vector index operations.
//
// The store holds (id, vector, text, metadata) tuples and supports
// nearest-neighbor queries with an equality/conjunction filter. Embedding
// happens outside the store: callers supply vectors on both the write and
// the read path.
//
// # Owner scoping
//
// Stores are constructed with an IsolationMode. Under PayloadIsolation
// (the default) every Query and DeleteWhere reads the owner id from the
// request context and conjoins it with the caller's filter, failing closed
// with ErrMissingOwner when the context carries none:
//
//	ctx = vectorstore.ContextWithOwner(ctx, "user-123")
//	results, err := store.Query(ctx, vec, k, Filter{DocumentID: docID})
//
// DeleteWhereGlobal is the single, intentionally more permissive escape
// hatch: it applies the caller's filter as-is with no owner conjunction.
// It exists for administrative cleanup and is never a fallback for a
// missing owner.
//
// Implementations must tolerate concurrent Upsert/Query/DeleteWhere calls.
type Store interface {
	// Upsert writes documents in one batch. Ids unique within the call;
	// a duplicate id overwrites the stored entry. Vectors must match the
	// collection dimension.
	Upsert(ctx context.Context, docs []Document) error

	// Query returns up to k nearest neighbors of vector by cosine
	// distance, subject to the filter conjoined with the owner scope.
	// Results carry the raw distance; similarity conversion belongs to
	// the caller.
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]SearchResult, error)

	// DeleteWhere removes all entries matching the filter conjoined with
	// the owner scope and returns the number removed.
	DeleteWhere(ctx context.Context, filter Filter) (int, error)

	// DeleteWhereGlobal removes all entries matching the filter with no
	// owner conjunction. The filter must be non-empty.
	DeleteWhereGlobal(ctx context.Context, filter Filter) (int, error)

	// Count returns the total number of entries in the collection.
	Count(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}
