package ecs

import (
	"reflect"
	"sync"

	"github.com/kamstrup/intmap"
)

// componentStorage pairs one component type's data pool with the single
// reader-writer lock that mediates every access to it. The lock is shared by
// the EntityManager (entity destruction) and the ComponentAccessManager
// (all public component access); there is no second lock on the data.
type componentStorage struct {
	typ  reflect.Type
	name string
	mu   sync.RWMutex
	pool componentPool
}

// componentPool is the type-erased surface over a typed component pool.
// Callers must hold the owning componentStorage lock.
type componentPool interface {
	has(id uint64) bool
	remove(id uint64) bool
	count() int
	entityIDs() []uint64
}

// typedPool stores components of a single type keyed by entity id. Values
// are boxed so pointers handed out by guards stay stable across map growth.
type typedPool[T any] struct {
	items *intmap.Map[uint64, *T]
}

func newTypedPool[T any]() *typedPool[T] {
	return &typedPool[T]{
		items: intmap.New[uint64, *T](64),
	}
}

func (p *typedPool[T]) get(id uint64) (*T, bool) {
	return p.items.Get(id)
}

// add inserts a copy of v for the entity. Returns false if the entity
// already has a component of this type.
func (p *typedPool[T]) add(id uint64, v T) bool {
	if _, ok := p.items.Get(id); ok {
		return false
	}
	p.items.Put(id, &v)
	return true
}

func (p *typedPool[T]) has(id uint64) bool {
	_, ok := p.items.Get(id)
	return ok
}

func (p *typedPool[T]) remove(id uint64) bool {
	if _, ok := p.items.Get(id); !ok {
		return false
	}
	p.items.Del(id)
	return true
}

func (p *typedPool[T]) count() int {
	return p.items.Len()
}

func (p *typedPool[T]) entityIDs() []uint64 {
	ids := make([]uint64, 0, p.items.Len())
	p.items.ForEach(func(id uint64, _ *T) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}
