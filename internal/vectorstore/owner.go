package vectorstore

import (
	"context"
	"errors"
)

// Owner scoping errors - fail closed security model.
var (
	// ErrMissingOwner is returned when no owner id is present in the
	// request context. This triggers fail-closed behavior: no empty
	// results, just errors.
	ErrMissingOwner = errors.New("owner id missing from context")

	// ErrOwnerInFilter is returned when a caller-supplied filter already
	// carries an owner constraint. Owner scope comes from the context,
	// never from user filters.
	ErrOwnerInFilter = errors.New("caller filters cannot constrain owner")
)

// ownerContextKey is the context key for the owner id.
type ownerContextKey struct{}

// ContextWithOwner attaches the opaque owning-user identifier to a context.
// The identifier comes from the enclosing authentication layer; the store
// never validates or interprets it beyond using it as a filter/tag value.
func ContextWithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, ownerID)
}

// OwnerFromContext extracts the owner id from a context.
// Returns ErrMissingOwner if absent or empty - fail closed.
func OwnerFromContext(ctx context.Context) (string, error) {
	ownerID, ok := ctx.Value(ownerContextKey{}).(string)
	if !ok || ownerID == "" {
		return "", ErrMissingOwner
	}
	return ownerID, nil
}

// HasOwner checks if an owner id is present in the context without error.
func HasOwner(ctx context.Context) bool {
	_, err := OwnerFromContext(ctx)
	return err == nil
}
