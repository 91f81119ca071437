package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is a map-backed Repository. Safe for concurrent use.
type Memory[T Entity] struct {
	mu       sync.RWMutex
	entities map[string]T
}

var _ Repository[Entity] = (*Memory[Entity])(nil)

// NewMemory creates an empty in-memory repository.
func NewMemory[T Entity]() *Memory[T] {
	return &Memory[T]{
		entities: make(map[string]T),
	}
}

// Find returns matching entities ordered by id.
func (m *Memory[T]) Find(ctx context.Context, match func(T) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]T, 0, len(m.entities))
	for _, e := range m.entities {
		if match == nil || match(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GetID() < result[j].GetID() })
	return result, nil
}

// FindOne returns the entity with the given id.
func (m *Memory[T]) FindOne(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entities[id]
	if !ok {
		return zero, fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	return e, nil
}

// Create stores a new entity, generating an id when the entity has none.
func (m *Memory[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entity.GetID() == "" {
		entity.SetID(uuid.NewString())
	} else if _, exists := m.entities[entity.GetID()]; exists {
		return zero, fmt.Errorf("id %q: %w", entity.GetID(), ErrConflict)
	}

	m.entities[entity.GetID()] = entity
	return entity, nil
}

// Save upserts an entity that already has an id.
func (m *Memory[T]) Save(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if entity.GetID() == "" {
		return zero, ErrMissingID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entities[entity.GetID()] = entity
	return entity, nil
}

// Remove deletes the entity.
func (m *Memory[T]) Remove(ctx context.Context, entity T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := entity.GetID()
	if _, ok := m.entities[id]; !ok {
		return fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	delete(m.entities, id)
	return nil
}

// Len returns the number of stored entities.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}
