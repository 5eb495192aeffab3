// Package ecs is the concurrency substrate for a real-time simulation: a
// thread-safe entity registry with generational handles, a per-type locking
// layer over component storages, and a type-indexed message bus with
// priority-ordered deferred delivery. Simulation systems built on top of it
// never handle raw locks; all shared state is reached through lock-owning
// guards or boolean-result operations.
package ecs

import (
	"fmt"
	"reflect"
	"time"
)

// EntityID is a generational handle to an entity. The numeric ID is assigned
// once and never reused; Gen is incremented when the entity is destroyed, so
// a stale handle can never alias a live slot.
type EntityID struct {
	ID  uint64
	Gen uint32
}

// IsZero reports whether the handle is the zero value (never issued).
func (e EntityID) IsZero() bool {
	return e.ID == 0
}

func (e EntityID) String() string {
	return fmt.Sprintf("Entity[%d:%d]", e.ID, e.Gen)
}

// entityInfo is the per-id slot owned by the EntityManager. It is only ever
// read or mutated under the manager's entities lock.
type entityInfo struct {
	id         uint64
	gen        uint32
	active     bool
	name       string
	components map[reflect.Type]struct{}

	created  time.Time
	modified time.Time
}

func (info *entityInfo) handle() EntityID {
	return EntityID{ID: info.id, Gen: info.gen}
}

// validFor reports whether the given handle still refers to this slot.
func (info *entityInfo) validFor(h EntityID) bool {
	return info.active && info.id == h.ID && info.gen == h.Gen
}

func (info *entityInfo) touch() {
	info.modified = time.Now()
}
