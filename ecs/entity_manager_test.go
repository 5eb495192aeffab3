package ecs_test

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/plus3/simcore/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEntity(t *testing.T) {
	em := ecs.NewEntityManager()

	h := em.CreateEntity("castle")
	assert.False(t, h.IsZero())
	assert.Equal(t, uint32(1), h.Gen)
	assert.True(t, em.IsEntityValid(h))

	name, ok := em.EntityName(h)
	assert.True(t, ok)
	assert.Equal(t, "castle", name)
}

func TestCreateEntityDefaultName(t *testing.T) {
	em := ecs.NewEntityManager()

	h := em.CreateEntity("")
	name, ok := em.EntityName(h)
	assert.True(t, ok)
	assert.Equal(t, fmt.Sprintf("entity-%d", h.ID), name)
}

func TestEntityIdsNeverReused(t *testing.T) {
	em := ecs.NewEntityManager()

	seen := make(map[uint64]bool)
	for i := 0; i < 100; i++ {
		h := em.CreateEntity("")
		require.False(t, seen[h.ID], "id %d issued twice", h.ID)
		seen[h.ID] = true
		em.DestroyEntity(h)
	}
}

func TestDestroyEntity(t *testing.T) {
	em := ecs.NewEntityManager()

	h := em.CreateEntity("doomed")
	assert.True(t, em.DestroyEntity(h))
	assert.False(t, em.IsEntityValid(h))

	// Double destroy is a no-op returning false.
	assert.False(t, em.DestroyEntity(h))
	assert.False(t, em.IsEntityValid(h))
}

func TestDestroyedHandleStaysInvalid(t *testing.T) {
	em := ecs.NewEntityManager()

	h := em.CreateEntity("old")
	require.True(t, em.DestroyEntity(h))

	for i := 0; i < 10; i++ {
		em.CreateEntity("noise")
	}
	assert.False(t, em.IsEntityValid(h))

	// A forged handle with a bumped generation is invalid too: the slot is
	// inactive.
	forged := ecs.EntityID{ID: h.ID, Gen: h.Gen + 1}
	assert.False(t, em.IsEntityValid(forged))
}

func TestDestroyRemovesComponents(t *testing.T) {
	em := ecs.NewEntityManager()
	am := ecs.NewComponentAccessManager(em, nil)

	h := em.CreateEntity("e1")
	require.True(t, ecs.AddComponent(am, h, Position{X: 0, Y: 0}))
	require.True(t, ecs.AddComponent(am, h, Health{Current: 10, Max: 10}))

	require.True(t, em.DestroyEntity(h))
	assert.False(t, em.IsEntityValid(h))

	guard := ecs.GetComponent[Position](am, h)
	defer guard.Release()
	assert.False(t, guard.Valid())
	assert.Nil(t, guard.Get())
}

// Lifecycle scenario: destroy, recreate, stale access.
func TestEntityLifecycleScenario(t *testing.T) {
	em := ecs.NewEntityManager()
	am := ecs.NewComponentAccessManager(em, nil)

	e1 := em.CreateEntity("first")
	require.True(t, ecs.AddComponent(am, e1, Position{X: 0, Y: 0}))

	require.True(t, em.DestroyEntity(e1))
	assert.False(t, em.IsEntityValid(e1))

	e2 := em.CreateEntity("second")
	assert.NotEqual(t, e1.ID, e2.ID)

	guard := ecs.GetComponent[Position](am, e1)
	defer guard.Release()
	assert.False(t, guard.Valid())
}

func TestGetEntityInfoGuard(t *testing.T) {
	em := ecs.NewEntityManager()
	am := ecs.NewComponentAccessManager(em, nil)

	h := em.CreateEntity("guarded")
	require.True(t, ecs.AddComponent(am, h, Position{X: 1, Y: 2}))

	guard := em.GetEntityInfo(h)
	require.True(t, guard.Valid())
	assert.Equal(t, "guarded", guard.Name())
	assert.Equal(t, h, guard.Handle())
	assert.True(t, guard.HasComponentType(reflect.TypeOf(Position{})))
	assert.Len(t, guard.ComponentTypes(), 1)
	assert.False(t, guard.Created().IsZero())
	guard.Release()
	guard.Release() // idempotent

	// Stale handle yields an absent guard holding no lock.
	em.DestroyEntity(h)
	stale := em.GetEntityInfo(h)
	assert.False(t, stale.Valid())
	assert.Equal(t, ecs.EntityID{}, stale.Handle())
	stale.Release()
}

func TestGetMutableEntityInfoGuard(t *testing.T) {
	em := ecs.NewEntityManager()

	h := em.CreateEntity("before")
	guard := em.GetMutableEntityInfo(h)
	require.True(t, guard.Valid())
	guard.SetName("after")
	guard.Release()

	name, ok := em.EntityName(h)
	require.True(t, ok)
	assert.Equal(t, "after", name)
}

func TestSetEntityName(t *testing.T) {
	em := ecs.NewEntityManager()

	h := em.CreateEntity("a")
	assert.True(t, em.SetEntityName(h, "b"))

	em.DestroyEntity(h)
	assert.False(t, em.SetEntityName(h, "c"))
}

func TestGetEntitiesWithComponent(t *testing.T) {
	em := ecs.NewEntityManager()
	am := ecs.NewComponentAccessManager(em, nil)

	var withPos []ecs.EntityID
	for i := 0; i < 5; i++ {
		h := em.CreateEntity("")
		if i%2 == 0 {
			require.True(t, ecs.AddComponent(am, h, Position{X: float32(i)}))
			withPos = append(withPos, h)
		} else {
			require.True(t, ecs.AddComponent(am, h, Velocity{DX: float32(i)}))
		}
	}

	got := ecs.EntitiesWith[Position](em)
	assert.ElementsMatch(t, withPos, got)

	assert.Empty(t, ecs.EntitiesWith[Label](em))

	// Destroyed entities drop out.
	em.DestroyEntity(withPos[0])
	got = ecs.EntitiesWith[Position](em)
	assert.ElementsMatch(t, withPos[1:], got)
}

func TestGetAllActiveEntities(t *testing.T) {
	em := ecs.NewEntityManager()

	h1 := em.CreateEntity("")
	h2 := em.CreateEntity("")
	h3 := em.CreateEntity("")
	em.DestroyEntity(h2)

	assert.ElementsMatch(t, []ecs.EntityID{h1, h3}, em.GetAllActiveEntities())
}

func TestDestroyAllEntities(t *testing.T) {
	em := ecs.NewEntityManager()

	for i := 0; i < 10; i++ {
		em.CreateEntity("")
	}
	assert.Equal(t, 10, em.DestroyAllEntities())
	assert.Equal(t, 0, em.ActiveEntityCount())
}

func TestCleanupInactiveEntities(t *testing.T) {
	em := ecs.NewEntityManager()

	h1 := em.CreateEntity("keep")
	h2 := em.CreateEntity("drop")
	em.DestroyEntity(h2)

	assert.Equal(t, 1, em.CleanupInactiveEntities())
	assert.True(t, em.IsEntityValid(h1))
	assert.False(t, em.IsEntityValid(h2))

	// The id stays retired.
	h3 := em.CreateEntity("")
	assert.Greater(t, h3.ID, h2.ID)
}

func TestStatisticsCaching(t *testing.T) {
	em := ecs.NewEntityManager()
	am := ecs.NewComponentAccessManager(em, nil)

	h1 := em.CreateEntity("")
	h2 := em.CreateEntity("")
	require.True(t, ecs.AddComponent(am, h1, Position{}))
	require.True(t, ecs.AddComponent(am, h1, Health{}))
	require.True(t, ecs.AddComponent(am, h2, Position{}))

	stats := em.Statistics()
	assert.Equal(t, 2, stats.TotalEntities)
	assert.Equal(t, 2, stats.ActiveEntities)
	assert.Equal(t, 3, stats.TotalComponents)
	assert.InDelta(t, 1.5, stats.AvgComponentsPerEntity, 1e-9)
	assert.Equal(t, 2, stats.ComponentCounts[reflect.TypeOf(Position{}).String()])

	first := stats.LastCalculated

	// No structural change: cached snapshot is returned.
	again := em.Statistics()
	assert.Equal(t, first, again.LastCalculated)

	// A destroy dirties the cache.
	em.DestroyEntity(h2)
	fresh := em.Statistics()
	assert.Equal(t, 1, fresh.ActiveEntities)
	assert.Equal(t, 2, fresh.TotalComponents)
}

func TestValidateIntegrity(t *testing.T) {
	em := ecs.NewEntityManager()
	am := ecs.NewComponentAccessManager(em, nil)

	for i := 0; i < 5; i++ {
		h := em.CreateEntity("")
		require.True(t, ecs.AddComponent(am, h, Position{X: float32(i)}))
	}

	result := em.ValidateIntegrity()
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestConcurrentCreateDestroy(t *testing.T) {
	em := ecs.NewEntityManager()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	ids := make([][]ecs.EntityID, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				h := em.CreateEntity("")
				ids[w] = append(ids[w], h)
				if i%3 == 0 {
					em.DestroyEntity(h)
				}
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, batch := range ids {
		for _, h := range batch {
			require.False(t, seen[h.ID], "id %d issued twice", h.ID)
			seen[h.ID] = true
		}
	}
	assert.Len(t, seen, workers*perWorker)
}
