package ecs

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Cloner lets a component type control how it is copied. Types whose value
// contains interior mutexes should lock them while copying fields and leave
// the copy's mutexes at their zero value.
type Cloner interface {
	CloneComponent() any
}

// ComponentAddedMessage is enqueued after a component is attached.
type ComponentAddedMessage struct {
	Entity   EntityID
	TypeName string
}

// ComponentRemovedMessage is enqueued after a component is detached.
type ComponentRemovedMessage struct {
	Entity   EntityID
	TypeName string
}

// ComponentAccessManager arbitrates all component access over the storages
// owned by its EntityManager. Every public path to component data goes
// through one of its guard-returning accessors, so data is never reachable
// without the matching type lock held.
type ComponentAccessManager struct {
	entities *EntityManager
	bus      *MessageBus

	stats      *AccessStatistics
	monitoring atomic.Bool

	bulkMu    sync.Mutex
	bulkHeld  []*componentStorage
	bulkWrite bool
}

// NewComponentAccessManager creates an access layer over the given registry.
// The bus may be nil; when present, component attach/detach notifications
// are enqueued on it at normal priority for the next drain.
func NewComponentAccessManager(entities *EntityManager, bus *MessageBus) *ComponentAccessManager {
	am := &ComponentAccessManager{
		entities: entities,
		bus:      bus,
		stats:    NewAccessStatistics(),
	}
	am.monitoring.Store(true)
	return am
}

// EntityManager returns the registry this access layer mediates.
func (am *ComponentAccessManager) EntityManager() *EntityManager {
	return am.entities
}

// AccessStatistics returns the live statistics table.
func (am *ComponentAccessManager) AccessStatistics() *AccessStatistics {
	return am.stats
}

// EnablePerformanceMonitoring toggles statistics recording.
func (am *ComponentAccessManager) EnablePerformanceMonitoring(enable bool) {
	am.monitoring.Store(enable)
}

// ResetPerformanceCounters drops all recorded statistics.
func (am *ComponentAccessManager) ResetPerformanceCounters() {
	am.stats.Reset()
}

// GetPerformanceReport renders the contention ranking as text lines.
func (am *ComponentAccessManager) GetPerformanceReport() []string {
	return am.stats.PerformanceReport()
}

func (am *ComponentAccessManager) recordRead(typeName string) {
	if am.monitoring.Load() {
		am.stats.RecordRead(typeName)
	}
}

func (am *ComponentAccessManager) recordWrite(typeName string) {
	if am.monitoring.Load() {
		am.stats.RecordWrite(typeName)
	}
}

// lockShared acquires the storage lock in shared mode, recording a
// contention event with the precise wait when the fast path fails.
func (am *ComponentAccessManager) lockShared(s *componentStorage) {
	if s.mu.TryRLock() {
		return
	}
	start := time.Now()
	s.mu.RLock()
	if am.monitoring.Load() {
		am.stats.RecordContention(s.name, float64(time.Since(start))/float64(time.Millisecond))
	}
}

// lockExclusive is the exclusive-mode counterpart of lockShared.
func (am *ComponentAccessManager) lockExclusive(s *componentStorage) {
	if s.mu.TryLock() {
		return
	}
	start := time.Now()
	s.mu.Lock()
	if am.monitoring.Load() {
		am.stats.RecordContention(s.name, float64(time.Since(start))/float64(time.Millisecond))
	}
}

// GetComponent returns a shared-lock guard over the entity's component of
// type T. The guard is absent if the handle is stale or the component is
// missing.
func GetComponent[T any](am *ComponentAccessManager, h EntityID) *ReadGuard[T] {
	if !am.entities.IsEntityValid(h) {
		return &ReadGuard[T]{}
	}
	s := am.entities.lookupStorage(reflect.TypeFor[T]())
	if s == nil {
		return &ReadGuard[T]{}
	}

	am.lockShared(s)
	am.recordRead(s.name)
	v, ok := s.pool.(*typedPool[T]).get(h.ID)
	if !ok {
		s.mu.RUnlock()
		return &ReadGuard[T]{}
	}
	return &ReadGuard[T]{value: v, mu: &s.mu, held: true}
}

// GetComponentMutable returns an exclusive-lock guard over the entity's
// component of type T. Absent if the handle is stale or the component is
// missing.
func GetComponentMutable[T any](am *ComponentAccessManager, h EntityID) *WriteGuard[T] {
	if !am.entities.IsEntityValid(h) {
		return &WriteGuard[T]{}
	}
	s := am.entities.lookupStorage(reflect.TypeFor[T]())
	if s == nil {
		return &WriteGuard[T]{}
	}

	am.lockExclusive(s)
	am.recordWrite(s.name)
	v, ok := s.pool.(*typedPool[T]).get(h.ID)
	if !ok {
		s.mu.Unlock()
		return &WriteGuard[T]{}
	}
	return &WriteGuard[T]{value: v, mu: &s.mu, held: true}
}

// HasComponent reports whether the entity currently has a component of
// type T.
func HasComponent[T any](am *ComponentAccessManager, h EntityID) bool {
	if !am.entities.IsEntityValid(h) {
		return false
	}
	s := am.entities.lookupStorage(reflect.TypeFor[T]())
	if s == nil {
		return false
	}

	am.lockShared(s)
	defer s.mu.RUnlock()
	return s.pool.has(h.ID)
}

// AddComponent attaches a copy of v to the entity. Returns false if the
// handle is stale or the entity already has a component of type T.
func AddComponent[T any](am *ComponentAccessManager, h EntityID, v T) bool {
	if !am.entities.IsEntityValid(h) {
		return false
	}
	typ := reflect.TypeFor[T]()
	s := am.entities.storageFor(typ, func() componentPool { return newTypedPool[T]() })
	pool := s.pool.(*typedPool[T])

	am.lockExclusive(s)
	added := pool.add(h.ID, v)
	s.mu.Unlock()
	if !added {
		return false
	}

	// The entity may have been destroyed between the validity check and the
	// insert; the storage lock is never held across the registry lock, so
	// undo instead.
	if !am.entities.noteComponentAdded(h, typ) {
		am.lockExclusive(s)
		pool.remove(h.ID)
		s.mu.Unlock()
		return false
	}

	am.recordWrite(s.name)
	if am.bus != nil {
		Enqueue(am.bus, ComponentAddedMessage{Entity: h, TypeName: s.name}, PriorityNormal)
	}
	return true
}

// RemoveComponent detaches the entity's component of type T. Returns false
// if the handle is stale or no such component exists; a repeated remove is
// a no-op returning false.
func RemoveComponent[T any](am *ComponentAccessManager, h EntityID) bool {
	if !am.entities.IsEntityValid(h) {
		return false
	}
	typ := reflect.TypeFor[T]()
	s := am.entities.lookupStorage(typ)
	if s == nil {
		return false
	}

	am.lockExclusive(s)
	removed := s.pool.remove(h.ID)
	s.mu.Unlock()
	if !removed {
		return false
	}

	am.entities.noteComponentRemoved(h, typ)
	am.recordWrite(s.name)
	if am.bus != nil {
		Enqueue(am.bus, ComponentRemovedMessage{Entity: h, TypeName: s.name}, PriorityNormal)
	}
	return true
}

// SnapshotComponent returns a copy of the entity's component of type T,
// taken under the shared lock. If T implements Cloner the copy is produced
// by CloneComponent, letting composite types lock their interior mutexes
// during the copy and hand back fresh zero-value ones.
func SnapshotComponent[T any](am *ComponentAccessManager, h EntityID) (T, bool) {
	var zero T
	if !am.entities.IsEntityValid(h) {
		return zero, false
	}
	s := am.entities.lookupStorage(reflect.TypeFor[T]())
	if s == nil {
		return zero, false
	}

	am.lockShared(s)
	defer s.mu.RUnlock()
	am.recordRead(s.name)

	v, ok := s.pool.(*typedPool[T]).get(h.ID)
	if !ok {
		return zero, false
	}
	if c, isCloner := any(v).(Cloner); isCloner {
		return c.CloneComponent().(T), true
	}
	return *v, true
}

// GetAllComponentsForRead locks type T's whole storage in shared mode and
// returns a collection guard over it for a consistent multi-entity read.
func GetAllComponentsForRead[T any](am *ComponentAccessManager) *CollectionReadGuard[T] {
	s := am.entities.lookupStorage(reflect.TypeFor[T]())
	if s == nil {
		return &CollectionReadGuard[T]{}
	}
	am.lockShared(s)
	am.recordRead(s.name)
	return &CollectionReadGuard[T]{pool: s.pool.(*typedPool[T]), mu: &s.mu, held: true}
}

// GetAllComponentsForWrite locks type T's whole storage in exclusive mode
// and returns a mutable collection guard over it.
func GetAllComponentsForWrite[T any](am *ComponentAccessManager) *CollectionWriteGuard[T] {
	s := am.entities.lookupStorage(reflect.TypeFor[T]())
	if s == nil {
		return &CollectionWriteGuard[T]{}
	}
	am.lockExclusive(s)
	am.recordWrite(s.name)
	return &CollectionWriteGuard[T]{pool: s.pool.(*typedPool[T]), mu: &s.mu, held: true}
}

// TryLockComponentForRead attempts the shared lock for the named type,
// retrying in a short sleep loop until the timeout elapses. Reader-writer
// locks have no native timed acquire, so this is the bounded-latency
// alternative to blocking. A name with no registered storage reports
// failure so the caller never pairs an unlock with a lock that was not
// taken. The caller releases with UnlockComponentForRead.
func (am *ComponentAccessManager) TryLockComponentForRead(typeName string, timeout time.Duration) bool {
	s := am.entities.storageByName(typeName)
	if s == nil {
		return false
	}
	deadline := time.Now().Add(timeout)
	for {
		if s.mu.TryRLock() {
			am.recordRead(typeName)
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// TryLockComponentForWrite is the exclusive-mode counterpart of
// TryLockComponentForRead, released with UnlockComponentForWrite.
func (am *ComponentAccessManager) TryLockComponentForWrite(typeName string, timeout time.Duration) bool {
	s := am.entities.storageByName(typeName)
	if s == nil {
		return false
	}
	deadline := time.Now().Add(timeout)
	for {
		if s.mu.TryLock() {
			am.recordWrite(typeName)
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// UnlockComponentForRead releases a shared lock taken by
// TryLockComponentForRead. No-op for an unknown type name.
func (am *ComponentAccessManager) UnlockComponentForRead(typeName string) {
	if s := am.entities.storageByName(typeName); s != nil {
		s.mu.RUnlock()
	}
}

// UnlockComponentForWrite releases an exclusive lock taken by
// TryLockComponentForWrite. No-op for an unknown type name.
func (am *ComponentAccessManager) UnlockComponentForWrite(typeName string) {
	if s := am.entities.storageByName(typeName); s != nil {
		s.mu.Unlock()
	}
}

// sortedStorages returns all storages ordered by type name, the globally
// agreed acquisition order for multi-lock operations.
func (am *ComponentAccessManager) sortedStorages() []*componentStorage {
	storages := am.entities.allStorages()
	sort.Slice(storages, func(i, j int) bool {
		return storages[i].name < storages[j].name
	})
	return storages
}

// LockAllComponentsForRead acquires every type's lock in shared mode, in
// sorted type-name order, for a consistent snapshot across storages. It
// must be paired with UnlockAllComponents; at most one bulk holder at a
// time, and nested bulk locking is not supported. The held set is recorded
// only after all locks are taken so a stalled acquisition never blocks an
// earlier holder's release.
func (am *ComponentAccessManager) LockAllComponentsForRead() {
	storages := am.sortedStorages()
	for _, s := range storages {
		am.lockShared(s)
	}
	am.bulkMu.Lock()
	am.bulkHeld = storages
	am.bulkWrite = false
	am.bulkMu.Unlock()
}

// LockAllComponentsForWrite acquires every type's lock in exclusive mode,
// in sorted type-name order.
func (am *ComponentAccessManager) LockAllComponentsForWrite() {
	storages := am.sortedStorages()
	for _, s := range storages {
		am.lockExclusive(s)
	}
	am.bulkMu.Lock()
	am.bulkHeld = storages
	am.bulkWrite = true
	am.bulkMu.Unlock()
}

// UnlockAllComponents releases the locks taken by the last bulk lock, in
// the same order they were acquired.
func (am *ComponentAccessManager) UnlockAllComponents() {
	am.bulkMu.Lock()
	for _, s := range am.bulkHeld {
		if am.bulkWrite {
			s.mu.Unlock()
		} else {
			s.mu.RUnlock()
		}
	}
	am.bulkHeld = nil
	am.bulkMu.Unlock()
}

// GetLockedComponents lists type names whose lock could not be acquired in
// shared mode right now, i.e. types currently held exclusively.
func (am *ComponentAccessManager) GetLockedComponents() []string {
	var locked []string
	for _, s := range am.entities.allStorages() {
		if s.mu.TryRLock() {
			s.mu.RUnlock()
		} else {
			locked = append(locked, s.name)
		}
	}
	sort.Strings(locked)
	return locked
}

// HasWriteLock reports whether the named type's lock is currently held
// exclusively (or has a writer waiting).
func (am *ComponentAccessManager) HasWriteLock(typeName string) bool {
	s := am.entities.storageByName(typeName)
	if s == nil {
		return false
	}
	if s.mu.TryRLock() {
		s.mu.RUnlock()
		return false
	}
	return true
}
