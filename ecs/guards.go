package ecs

import "sync"

// ReadGuard is a shared-lock view of a single component. The component
// type's lock is held for the guard's whole lifetime; the pointer returned
// by Get must not outlive the guard. An absent guard (stale handle or
// missing component) holds no lock.
//
// Guards must not be copied; Release is idempotent. Do not call registry
// operations (DestroyEntity, Statistics, IsEntityValid) while holding a
// guard: the registry lock is ordered before storage locks, and reversing
// that order can deadlock against a concurrent destroy.
type ReadGuard[T any] struct {
	value *T
	mu    *sync.RWMutex
	held  bool
}

// Valid reports whether the guard holds a component.
func (g *ReadGuard[T]) Valid() bool {
	return g.value != nil
}

// Get returns the component. The pointee must be treated as read-only and
// must not be retained past Release. Returns nil on an absent guard.
func (g *ReadGuard[T]) Get() *T {
	return g.value
}

// Release drops the lock. Safe to call more than once.
func (g *ReadGuard[T]) Release() {
	if g.held {
		g.held = false
		g.value = nil
		g.mu.RUnlock()
	}
}

// WriteGuard is the exclusive-lock counterpart of ReadGuard. The component
// may be mutated through Get until Release.
type WriteGuard[T any] struct {
	value *T
	mu    *sync.RWMutex
	held  bool
}

// Valid reports whether the guard holds a component.
func (g *WriteGuard[T]) Valid() bool {
	return g.value != nil
}

// Get returns the component for mutation. The pointer must not be retained
// past Release. Returns nil on an absent guard.
func (g *WriteGuard[T]) Get() *T {
	return g.value
}

// Release drops the lock. Safe to call more than once.
func (g *WriteGuard[T]) Release() {
	if g.held {
		g.held = false
		g.value = nil
		g.mu.Unlock()
	}
}

// CollectionReadGuard holds a component type's lock in shared mode over the
// whole storage, for consistent multi-entity reads. While the guard is live
// no component of the type can be added or removed.
type CollectionReadGuard[T any] struct {
	pool *typedPool[T]
	mu   *sync.RWMutex
	held bool
}

// Valid reports whether the guard holds the storage lock.
func (g *CollectionReadGuard[T]) Valid() bool {
	return g.held
}

// Get returns the component for the handle's entity, or nil if the entity
// has none. Destroyed entities have no storage entries, so a stale handle
// simply misses.
func (g *CollectionReadGuard[T]) Get(h EntityID) *T {
	if !g.held {
		return nil
	}
	v, ok := g.pool.get(h.ID)
	if !ok {
		return nil
	}
	return v
}

// Len returns the number of stored components.
func (g *CollectionReadGuard[T]) Len() int {
	if !g.held {
		return 0
	}
	return g.pool.count()
}

// Each calls fn for every stored component until fn returns false.
func (g *CollectionReadGuard[T]) Each(fn func(id uint64, v *T) bool) {
	if !g.held {
		return
	}
	g.pool.items.ForEach(fn)
}

// Release drops the lock. Safe to call more than once.
func (g *CollectionReadGuard[T]) Release() {
	if g.held {
		g.held = false
		g.mu.RUnlock()
	}
}

// CollectionWriteGuard is the exclusive-mode counterpart of
// CollectionReadGuard; components may be mutated in place through it.
type CollectionWriteGuard[T any] struct {
	pool *typedPool[T]
	mu   *sync.RWMutex
	held bool
}

// Valid reports whether the guard holds the storage lock.
func (g *CollectionWriteGuard[T]) Valid() bool {
	return g.held
}

// Get returns the component for the handle's entity for mutation, or nil if
// the entity has none.
func (g *CollectionWriteGuard[T]) Get(h EntityID) *T {
	if !g.held {
		return nil
	}
	v, ok := g.pool.get(h.ID)
	if !ok {
		return nil
	}
	return v
}

// Len returns the number of stored components.
func (g *CollectionWriteGuard[T]) Len() int {
	if !g.held {
		return 0
	}
	return g.pool.count()
}

// Each calls fn for every stored component until fn returns false.
func (g *CollectionWriteGuard[T]) Each(fn func(id uint64, v *T) bool) {
	if !g.held {
		return
	}
	g.pool.items.ForEach(fn)
}

// Release drops the lock. Safe to call more than once.
func (g *CollectionWriteGuard[T]) Release() {
	if g.held {
		g.held = false
		g.mu.Unlock()
	}
}
