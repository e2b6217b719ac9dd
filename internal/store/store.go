package store

import (
	"context"

	"connectord/internal/api"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	TypeID string
	State  api.ConnectorState
}

// Store is the persisted record of connector instances. Every call is
// atomic and safe under concurrent callers; the lifecycle manager layers
// per-instance serialization on top of it.
type Store interface {
	// Create persists a new instance. Fails if the instance ID is taken.
	Create(ctx context.Context, instance *api.ConnectorInstance) error

	// Get returns the instance with the given ID, or a NotFoundError.
	Get(ctx context.Context, instanceID string) (*api.ConnectorInstance, error)

	// Update applies mutate to the stored instance under the store lock and
	// persists the result. Returning an error from mutate aborts the update
	// without persisting. The returned instance is a copy.
	Update(ctx context.Context, instanceID string, mutate func(*api.ConnectorInstance) error) (*api.ConnectorInstance, error)

	// Delete removes the instance, or returns a NotFoundError.
	Delete(ctx context.Context, instanceID string) error

	// List returns instances matching the filter, sorted by creation time.
	List(ctx context.Context, filter Filter) ([]*api.ConnectorInstance, error)
}
