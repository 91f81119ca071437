// Package repo defines the persistence contract a provider may wrap to
// perform entity CRUD, plus an in-memory implementation suitable for tests
// and examples. The container knows nothing about persistence; a repository
// is just another injectable provider.
package repo

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no entity matched the given id.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict indicates an entity with the same id already exists.
	ErrConflict = errors.New("entity id already exists")

	// ErrMissingID indicates an operation that requires an id got an entity
	// without one.
	ErrMissingID = errors.New("entity has no id")
)

// Entity is anything with a settable string identity.
type Entity interface {
	GetID() string
	SetID(id string)
}

// Repository is the narrow persistence contract per entity type.
type Repository[T Entity] interface {
	// Find returns all entities matching the filter. A nil filter matches
	// everything.
	Find(ctx context.Context, match func(T) bool) ([]T, error)

	// FindOne returns the entity with the given id or ErrNotFound.
	FindOne(ctx context.Context, id string) (T, error)

	// Create stores a new entity, assigning an id if it has none.
	Create(ctx context.Context, entity T) (T, error)

	// Save upserts an entity that already has an id.
	Save(ctx context.Context, entity T) (T, error)

	// Remove deletes the entity, failing with ErrNotFound if absent.
	Remove(ctx context.Context, entity T) error
}
