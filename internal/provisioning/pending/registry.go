// Package pending tracks in-flight platform operations by correlation id.
package pending

import (
	"sync"

	"esims/pkg/platform/sentinel"
)

// Registry is a mutex-guarded map of in-flight operations. Entries are removed
// once their operation reaches a terminal state, so lookups for completed
// operations fail with sentinel.ErrNotFound.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		entries: make(map[string]T),
	}
}

// Insert adds an entry. Returns sentinel.ErrConflict if the id is taken.
func (r *Registry[T]) Insert(id string, v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return sentinel.ErrConflict
	}
	r.entries[id] = v
	return nil
}

// InsertExclusive adds an entry only when the registry is empty.
func (r *Registry[T]) InsertExclusive(id string, v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) > 0 {
		return sentinel.ErrConflict
	}
	r.entries[id] = v
	return nil
}

// Get returns the entry for id.
func (r *Registry[T]) Get(id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[id]
	if !ok {
		var zero T
		return zero, sentinel.ErrNotFound
	}
	return v, nil
}

// Only returns the single entry when exactly one is registered. Used to match
// callbacks that arrive without a correlation token.
func (r *Registry[T]) Only() (string, T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	if len(r.entries) != 1 {
		return "", zero, sentinel.ErrNotFound
	}
	for id, v := range r.entries {
		return id, v, nil
	}
	return "", zero, sentinel.ErrNotFound
}

// Remove deletes and returns the entry for id.
func (r *Registry[T]) Remove(id string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[id]
	if !ok {
		var zero T
		return zero, sentinel.ErrNotFound
	}
	delete(r.entries, id)
	return v, nil
}

// Len returns the number of in-flight entries.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Drain removes and returns every entry.
func (r *Registry[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, len(r.entries))
	for id, v := range r.entries {
		out = append(out, v)
		delete(r.entries, id)
	}
	return out
}
