package vectorstore

import "context"

// IsolationMode defines how owner isolation is enforced in a store.
//
// Security: implementations must fail closed - absent owner context is an
// error, never an unscoped query.
type IsolationMode interface {
	// InjectFilter conjoins the owner scope with a caller-supplied
	// filter. Fails with ErrMissingOwner when the context carries no
	// owner, and with ErrOwnerInFilter when the caller tried to set one.
	InjectFilter(ctx context.Context, filter Filter) (Filter, error)

	// InjectMetadata stamps the owner id onto documents before storage.
	InjectMetadata(ctx context.Context, docs []Document) error

	// Mode returns the isolation mode name for logging.
	Mode() string
}

// PayloadIsolation enforces owner scope via metadata filtering: all owners
// share one collection, every chunk carries owner_id, and every query and
// scoped delete is conjoined with the context's owner.
type PayloadIsolation struct{}

// NewPayloadIsolation creates the default, fail-closed isolation mode.
func NewPayloadIsolation() *PayloadIsolation {
	return &PayloadIsolation{}
}

// InjectFilter conjoins the context owner with the caller's filter.
func (p *PayloadIsolation) InjectFilter(ctx context.Context, filter Filter) (Filter, error) {
	if filter.OwnerID != "" {
		return Filter{}, ErrOwnerInFilter
	}
	ownerID, err := OwnerFromContext(ctx)
	if err != nil {
		return Filter{}, err
	}
	filter.OwnerID = ownerID
	return filter, nil
}

// InjectMetadata stamps the context owner onto every document, overwriting
// any caller-set value.
func (p *PayloadIsolation) InjectMetadata(ctx context.Context, docs []Document) error {
	ownerID, err := OwnerFromContext(ctx)
	if err != nil {
		return err
	}
	for i := range docs {
		docs[i].Metadata.OwnerID = ownerID
	}
	return nil
}

// Mode returns "payload".
func (p *PayloadIsolation) Mode() string {
	return "payload"
}

// NoIsolation disables owner scoping entirely. For tests only.
type NoIsolation struct{}

// NewNoIsolation creates an isolation mode that performs no scoping.
func NewNoIsolation() *NoIsolation {
	return &NoIsolation{}
}

// InjectFilter returns the filter unchanged.
func (n *NoIsolation) InjectFilter(_ context.Context, filter Filter) (Filter, error) {
	return filter, nil
}

// InjectMetadata leaves documents unchanged.
func (n *NoIsolation) InjectMetadata(context.Context, []Document) error {
	return nil
}

// Mode returns "none".
func (n *NoIsolation) Mode() string {
	return "none"
}
