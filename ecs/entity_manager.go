package ecs

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kamstrup/intmap"
)

// EntityManager owns entity lifecycle and generational handle validity, plus
// the registry of per-type component storages. Component data itself is only
// reachable through a ComponentAccessManager, which shares the per-storage
// locks defined here.
//
// Lock order for any multi-lock path: entities lock, then storages-registry
// lock, then individual storage locks (sorted by type name when more than
// one is taken), then statistics locks. Violating this order is a deadlock.
type EntityManager struct {
	mu       sync.RWMutex
	entities *intmap.Map[uint64, *entityInfo]

	nextID atomic.Uint64

	storagesMu sync.RWMutex
	storages   map[reflect.Type]*componentStorage

	statsDirty atomic.Bool
	statsMu    sync.RWMutex
	stats      EntityStatistics
}

// EntityStatistics is a lazily computed snapshot of registry state. It is
// cached and recomputed only after a structural mutation marks it dirty.
type EntityStatistics struct {
	TotalEntities          int
	ActiveEntities         int
	TotalComponents        int
	AvgComponentsPerEntity float64
	ComponentCounts        map[string]int

	LastUpdateDuration time.Duration
	LastCalculated     time.Time
}

// NewEntityManager creates an empty registry. Entity ids start at 1 so the
// zero EntityID is never a live handle.
func NewEntityManager() *EntityManager {
	return &EntityManager{
		entities: intmap.New[uint64, *entityInfo](256),
		storages: make(map[reflect.Type]*componentStorage),
	}
}

// CreateEntity allocates a fresh entity and returns its handle. The numeric
// id comes from a lock-free counter and is never reissued, even after the
// entity is destroyed.
func (em *EntityManager) CreateEntity(name string) EntityID {
	id := em.nextID.Add(1)
	if name == "" {
		name = fmt.Sprintf("entity-%d", id)
	}

	now := time.Now()
	info := &entityInfo{
		id:         id,
		gen:        1,
		active:     true,
		name:       name,
		components: make(map[reflect.Type]struct{}),
		created:    now,
		modified:   now,
	}

	em.mu.Lock()
	em.entities.Put(id, info)
	em.mu.Unlock()

	em.statsDirty.Store(true)
	return EntityID{ID: id, Gen: 1}
}

// DestroyEntity invalidates the handle and removes the entity's components
// from every storage it is registered in. Validation and mutation happen in
// one critical section, so a double destroy (or any stale handle) returns
// false with no side effects.
func (em *EntityManager) DestroyEntity(h EntityID) bool {
	em.mu.Lock()
	defer em.mu.Unlock()

	info, ok := em.entities.Get(h.ID)
	if !ok || !info.validFor(h) {
		return false
	}

	// Storage locks are always taken after the entities lock.
	em.storagesMu.RLock()
	for typ := range info.components {
		if s := em.storages[typ]; s != nil {
			s.mu.Lock()
			s.pool.remove(h.ID)
			s.mu.Unlock()
		}
	}
	em.storagesMu.RUnlock()

	info.active = false
	info.gen++
	info.components = make(map[reflect.Type]struct{})
	info.touch()

	em.statsDirty.Store(true)
	return true
}

// IsEntityValid reports whether the handle refers to a live entity whose
// generation still matches.
func (em *EntityManager) IsEntityValid(h EntityID) bool {
	em.mu.RLock()
	defer em.mu.RUnlock()

	info, ok := em.entities.Get(h.ID)
	return ok && info.validFor(h)
}

// EntityName returns the entity's name, or "" and false for a stale handle.
func (em *EntityManager) EntityName(h EntityID) (string, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	info, ok := em.entities.Get(h.ID)
	if !ok || !info.validFor(h) {
		return "", false
	}
	return info.name, true
}

// SetEntityName renames a live entity. Returns false for a stale handle.
func (em *EntityManager) SetEntityName(h EntityID, name string) bool {
	em.mu.Lock()
	defer em.mu.Unlock()

	info, ok := em.entities.Get(h.ID)
	if !ok || !info.validFor(h) {
		return false
	}
	info.name = name
	info.touch()
	return true
}

// EntityGeneration returns the current generation stored for the handle's
// id, or 0 if the handle is stale.
func (em *EntityManager) EntityGeneration(h EntityID) uint32 {
	em.mu.RLock()
	defer em.mu.RUnlock()

	info, ok := em.entities.Get(h.ID)
	if !ok || !info.validFor(h) {
		return 0
	}
	return info.gen
}

// GetEntityInfo returns a shared-lock guard over the entity's slot. The
// guard is absent (Valid() == false) for a stale handle and must be
// released by the caller.
func (em *EntityManager) GetEntityInfo(h EntityID) *EntityInfoGuard {
	em.mu.RLock()
	info, ok := em.entities.Get(h.ID)
	if !ok || !info.validFor(h) {
		em.mu.RUnlock()
		return &EntityInfoGuard{}
	}
	return &EntityInfoGuard{info: info, mu: &em.mu, held: true}
}

// GetMutableEntityInfo returns an exclusive-lock guard over the entity's
// slot. Absent for a stale handle.
func (em *EntityManager) GetMutableEntityInfo(h EntityID) *EntityInfoMutGuard {
	em.mu.Lock()
	info, ok := em.entities.Get(h.ID)
	if !ok || !info.validFor(h) {
		em.mu.Unlock()
		return &EntityInfoMutGuard{}
	}
	return &EntityInfoMutGuard{info: info, mu: &em.mu, held: true}
}

// GetEntitiesWithComponent returns handles of all active entities whose
// component set contains the given type.
func (em *EntityManager) GetEntitiesWithComponent(typ reflect.Type) []EntityID {
	em.mu.RLock()
	defer em.mu.RUnlock()

	em.storagesMu.RLock()
	s := em.storages[typ]
	em.storagesMu.RUnlock()
	if s == nil {
		return nil
	}

	s.mu.RLock()
	ids := s.pool.entityIDs()
	s.mu.RUnlock()

	result := make([]EntityID, 0, len(ids))
	for _, id := range ids {
		if info, ok := em.entities.Get(id); ok && info.active {
			result = append(result, info.handle())
		}
	}
	return result
}

// EntitiesWith is the generic convenience form of GetEntitiesWithComponent.
func EntitiesWith[T any](em *EntityManager) []EntityID {
	return em.GetEntitiesWithComponent(reflect.TypeFor[T]())
}

// GetAllActiveEntities returns handles of every active entity.
func (em *EntityManager) GetAllActiveEntities() []EntityID {
	em.mu.RLock()
	defer em.mu.RUnlock()

	result := make([]EntityID, 0, em.entities.Len())
	em.entities.ForEach(func(_ uint64, info *entityInfo) bool {
		if info.active {
			result = append(result, info.handle())
		}
		return true
	})
	return result
}

// DestroyAllEntities destroys every active entity.
func (em *EntityManager) DestroyAllEntities() int {
	destroyed := 0
	for _, h := range em.GetAllActiveEntities() {
		if em.DestroyEntity(h) {
			destroyed++
		}
	}
	return destroyed
}

// CleanupInactiveEntities drops retired slots from the registry. The ids
// remain retired: the id counter never goes backwards, so they are never
// reissued.
func (em *EntityManager) CleanupInactiveEntities() int {
	em.mu.Lock()
	defer em.mu.Unlock()

	var stale []uint64
	em.entities.ForEach(func(id uint64, info *entityInfo) bool {
		if !info.active {
			stale = append(stale, id)
		}
		return true
	})
	for _, id := range stale {
		em.entities.Del(id)
	}
	if len(stale) > 0 {
		em.statsDirty.Store(true)
	}
	return len(stale)
}

// NextEntityID returns the id the next created entity will receive.
// Intended for diagnostics and tests.
func (em *EntityManager) NextEntityID() uint64 {
	return em.nextID.Load() + 1
}

// ActiveEntityCount returns the cached count of active entities.
func (em *EntityManager) ActiveEntityCount() int {
	return em.Statistics().ActiveEntities
}

// TotalComponentCount returns the cached count of stored components across
// all types.
func (em *EntityManager) TotalComponentCount() int {
	return em.Statistics().TotalComponents
}

// Statistics returns the current registry statistics, recomputing them only
// if a structural mutation happened since the last call.
func (em *EntityManager) Statistics() EntityStatistics {
	if em.statsDirty.Load() {
		em.updateStatistics()
	}

	em.statsMu.RLock()
	defer em.statsMu.RUnlock()

	snapshot := em.stats
	snapshot.ComponentCounts = make(map[string]int, len(em.stats.ComponentCounts))
	for name, n := range em.stats.ComponentCounts {
		snapshot.ComponentCounts[name] = n
	}
	return snapshot
}

func (em *EntityManager) updateStatistics() {
	start := time.Now()
	fresh := EntityStatistics{
		ComponentCounts: make(map[string]int),
	}

	// Compute into a local first so the stats lock is never held while the
	// registry locks are.
	em.mu.RLock()
	fresh.TotalEntities = em.entities.Len()
	em.entities.ForEach(func(_ uint64, info *entityInfo) bool {
		if info.active {
			fresh.ActiveEntities++
		}
		return true
	})
	em.mu.RUnlock()

	em.storagesMu.RLock()
	for _, s := range em.storages {
		s.mu.RLock()
		n := s.pool.count()
		s.mu.RUnlock()
		fresh.TotalComponents += n
		fresh.ComponentCounts[s.name] = n
	}
	em.storagesMu.RUnlock()

	if fresh.ActiveEntities > 0 {
		fresh.AvgComponentsPerEntity = float64(fresh.TotalComponents) / float64(fresh.ActiveEntities)
	}
	fresh.LastUpdateDuration = time.Since(start)
	fresh.LastCalculated = time.Now()

	em.statsMu.Lock()
	em.stats = fresh
	em.statsMu.Unlock()
	em.statsDirty.Store(false)
}

// storageFor returns the storage record for typ, creating it with the given
// pool factory on first use. Double-checked: shared-lock probe first, then
// exclusive-lock insert.
func (em *EntityManager) storageFor(typ reflect.Type, newPool func() componentPool) *componentStorage {
	em.storagesMu.RLock()
	s := em.storages[typ]
	em.storagesMu.RUnlock()
	if s != nil {
		return s
	}

	em.storagesMu.Lock()
	defer em.storagesMu.Unlock()
	if s = em.storages[typ]; s != nil {
		return s
	}
	s = &componentStorage{
		typ:  typ,
		name: typ.String(),
		pool: newPool(),
	}
	em.storages[typ] = s
	return s
}

// lookupStorage returns the storage record for typ, or nil if no component
// of that type was ever added.
func (em *EntityManager) lookupStorage(typ reflect.Type) *componentStorage {
	em.storagesMu.RLock()
	defer em.storagesMu.RUnlock()
	return em.storages[typ]
}

// storageByName resolves a storage by its component type name.
func (em *EntityManager) storageByName(name string) *componentStorage {
	em.storagesMu.RLock()
	defer em.storagesMu.RUnlock()
	for _, s := range em.storages {
		if s.name == name {
			return s
		}
	}
	return nil
}

// allStorages returns the current storage records. The slice is a copy; the
// records themselves are shared.
func (em *EntityManager) allStorages() []*componentStorage {
	em.storagesMu.RLock()
	defer em.storagesMu.RUnlock()

	out := make([]*componentStorage, 0, len(em.storages))
	for _, s := range em.storages {
		out = append(out, s)
	}
	return out
}

// noteComponentAdded records typ in the entity's component set. Returns
// false if the handle went stale.
func (em *EntityManager) noteComponentAdded(h EntityID, typ reflect.Type) bool {
	em.mu.Lock()
	defer em.mu.Unlock()

	info, ok := em.entities.Get(h.ID)
	if !ok || !info.validFor(h) {
		return false
	}
	info.components[typ] = struct{}{}
	info.touch()
	em.statsDirty.Store(true)
	return true
}

// noteComponentRemoved drops typ from the entity's component set.
func (em *EntityManager) noteComponentRemoved(h EntityID, typ reflect.Type) {
	em.mu.Lock()
	defer em.mu.Unlock()

	info, ok := em.entities.Get(h.ID)
	if !ok || !info.validFor(h) {
		return
	}
	delete(info.components, typ)
	info.touch()
	em.statsDirty.Store(true)
}

// ValidationResult reports entity/storage cross-check findings.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateIntegrity cross-checks entity component sets against storage
// contents. Mismatches in either direction are reported; components held by
// inactive or unknown entities are warnings.
func (em *EntityManager) ValidateIntegrity() ValidationResult {
	result := ValidationResult{Valid: true}

	em.mu.RLock()
	defer em.mu.RUnlock()
	em.storagesMu.RLock()
	defer em.storagesMu.RUnlock()

	em.entities.ForEach(func(id uint64, info *entityInfo) bool {
		if !info.active {
			return true
		}
		for typ := range info.components {
			s := em.storages[typ]
			if s == nil {
				result.addError("entity %d claims component %s but no storage exists", id, typ)
				continue
			}
			s.mu.RLock()
			present := s.pool.has(id)
			s.mu.RUnlock()
			if !present {
				result.addError("entity %d claims component %s but storage does not contain it", id, typ)
			}
		}
		return true
	})

	for typ, s := range em.storages {
		s.mu.RLock()
		ids := s.pool.entityIDs()
		s.mu.RUnlock()
		for _, id := range ids {
			info, ok := em.entities.Get(id)
			switch {
			case !ok:
				result.addWarning("storage %s holds component for unknown entity %d", typ, id)
			case !info.active:
				result.addWarning("storage %s holds component for inactive entity %d", typ, id)
			default:
				if _, claimed := info.components[typ]; !claimed {
					result.addError("storage %s holds component for entity %d that does not claim it", typ, id)
				}
			}
		}
	}

	return result
}
