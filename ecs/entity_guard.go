package ecs

import (
	"reflect"
	"sync"
	"time"
)

// EntityInfoGuard is a shared-lock view of an entity slot. The registry lock
// is held for the guard's whole lifetime, so the slot cannot be mutated or
// destroyed while the guard is live. An absent guard (stale handle) holds no
// lock and reports Valid() == false.
//
// Guards must not be copied and must be released exactly when the caller is
// done; Release is idempotent.
type EntityInfoGuard struct {
	info *entityInfo
	mu   *sync.RWMutex
	held bool
}

// Valid reports whether the guard refers to a live entity.
func (g *EntityInfoGuard) Valid() bool {
	return g.info != nil
}

// Handle returns the entity's current handle.
func (g *EntityInfoGuard) Handle() EntityID {
	if g.info == nil {
		return EntityID{}
	}
	return g.info.handle()
}

// Name returns the entity's name.
func (g *EntityInfoGuard) Name() string {
	if g.info == nil {
		return ""
	}
	return g.info.name
}

// ComponentTypes returns the entity's registered component types.
func (g *EntityInfoGuard) ComponentTypes() []reflect.Type {
	if g.info == nil {
		return nil
	}
	types := make([]reflect.Type, 0, len(g.info.components))
	for typ := range g.info.components {
		types = append(types, typ)
	}
	return types
}

// HasComponentType reports whether the entity's component set contains typ.
func (g *EntityInfoGuard) HasComponentType(typ reflect.Type) bool {
	if g.info == nil {
		return false
	}
	_, ok := g.info.components[typ]
	return ok
}

// Created returns the entity's creation time.
func (g *EntityInfoGuard) Created() time.Time {
	if g.info == nil {
		return time.Time{}
	}
	return g.info.created
}

// Modified returns the entity's last structural modification time.
func (g *EntityInfoGuard) Modified() time.Time {
	if g.info == nil {
		return time.Time{}
	}
	return g.info.modified
}

// Release drops the lock. Safe to call more than once.
func (g *EntityInfoGuard) Release() {
	if g.held {
		g.held = false
		g.info = nil
		g.mu.RUnlock()
	}
}

// EntityInfoMutGuard is the exclusive-lock counterpart of EntityInfoGuard.
type EntityInfoMutGuard struct {
	info *entityInfo
	mu   *sync.RWMutex
	held bool
}

// Valid reports whether the guard refers to a live entity.
func (g *EntityInfoMutGuard) Valid() bool {
	return g.info != nil
}

// Handle returns the entity's current handle.
func (g *EntityInfoMutGuard) Handle() EntityID {
	if g.info == nil {
		return EntityID{}
	}
	return g.info.handle()
}

// Name returns the entity's name.
func (g *EntityInfoMutGuard) Name() string {
	if g.info == nil {
		return ""
	}
	return g.info.name
}

// SetName renames the entity. No-op on an absent guard.
func (g *EntityInfoMutGuard) SetName(name string) {
	if g.info == nil {
		return
	}
	g.info.name = name
	g.info.touch()
}

// ComponentTypes returns the entity's registered component types.
func (g *EntityInfoMutGuard) ComponentTypes() []reflect.Type {
	if g.info == nil {
		return nil
	}
	types := make([]reflect.Type, 0, len(g.info.components))
	for typ := range g.info.components {
		types = append(types, typ)
	}
	return types
}

// Release drops the lock. Safe to call more than once.
func (g *EntityInfoMutGuard) Release() {
	if g.held {
		g.held = false
		g.info = nil
		g.mu.Unlock()
	}
}
