package ecs

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// componentAccessStats holds per-type access counters. Simple counts are
// atomics; the accumulated wait time is a float64 behind a narrow mutex
// because atomics cannot losslessly accumulate doubles.
type componentAccessStats struct {
	reads            atomic.Uint64
	writes           atomic.Uint64
	contentionEvents atomic.Uint64

	waitMu      sync.Mutex
	waitTotalMs float64
}

func (s *componentAccessStats) averageWaitMs() float64 {
	events := s.contentionEvents.Load()
	if events == 0 {
		return 0
	}
	s.waitMu.Lock()
	total := s.waitTotalMs
	s.waitMu.Unlock()
	return total / float64(events)
}

// AccessStatistics tracks component access patterns per type name. The map
// itself is guarded by its own RWMutex, which is always the last lock taken
// on any path that touches it.
type AccessStatistics struct {
	mu     sync.RWMutex
	byType map[string]*componentAccessStats
}

// NewAccessStatistics creates an empty statistics table.
func NewAccessStatistics() *AccessStatistics {
	return &AccessStatistics{
		byType: make(map[string]*componentAccessStats),
	}
}

func (a *AccessStatistics) statsFor(typeName string) *componentAccessStats {
	a.mu.RLock()
	s := a.byType[typeName]
	a.mu.RUnlock()
	if s != nil {
		return s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s = a.byType[typeName]; s != nil {
		return s
	}
	s = &componentAccessStats{}
	a.byType[typeName] = s
	return s
}

// RecordRead counts one shared acquisition for the type.
func (a *AccessStatistics) RecordRead(typeName string) {
	a.statsFor(typeName).reads.Add(1)
}

// RecordWrite counts one exclusive acquisition for the type.
func (a *AccessStatistics) RecordWrite(typeName string) {
	a.statsFor(typeName).writes.Add(1)
}

// RecordContention counts one contended acquisition and accumulates the
// observed wait time in milliseconds.
func (a *AccessStatistics) RecordContention(typeName string, waitMs float64) {
	s := a.statsFor(typeName)
	s.contentionEvents.Add(1)
	s.waitMu.Lock()
	s.waitTotalMs += waitMs
	s.waitMu.Unlock()
}

// ReadCount returns the number of recorded reads for the type.
func (a *AccessStatistics) ReadCount(typeName string) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s := a.byType[typeName]; s != nil {
		return s.reads.Load()
	}
	return 0
}

// WriteCount returns the number of recorded writes for the type.
func (a *AccessStatistics) WriteCount(typeName string) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s := a.byType[typeName]; s != nil {
		return s.writes.Load()
	}
	return 0
}

// ContentionCount returns the number of contended acquisitions for the type.
func (a *AccessStatistics) ContentionCount(typeName string) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s := a.byType[typeName]; s != nil {
		return s.contentionEvents.Load()
	}
	return 0
}

// AverageContentionMs returns the mean wait of contended acquisitions for
// the type, in milliseconds.
func (a *AccessStatistics) AverageContentionMs(typeName string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s := a.byType[typeName]; s != nil {
		return s.averageWaitMs()
	}
	return 0
}

// GetMostContentedComponents returns type names that saw contention, ranked
// by average wait time, worst first.
func (a *AccessStatistics) GetMostContentedComponents() []string {
	type ranked struct {
		name  string
		avgMs float64
	}

	a.mu.RLock()
	contended := make([]ranked, 0, len(a.byType))
	for name, s := range a.byType {
		if s.contentionEvents.Load() > 0 {
			contended = append(contended, ranked{name: name, avgMs: s.averageWaitMs()})
		}
	}
	a.mu.RUnlock()

	sort.Slice(contended, func(i, j int) bool {
		if contended[i].avgMs != contended[j].avgMs {
			return contended[i].avgMs > contended[j].avgMs
		}
		return contended[i].name < contended[j].name
	})

	names := make([]string, len(contended))
	for i, r := range contended {
		names[i] = r.name
	}
	return names
}

// PerformanceReport renders one line per contended type: reads, writes and
// average wait.
func (a *AccessStatistics) PerformanceReport() []string {
	report := make([]string, 0)
	for _, name := range a.GetMostContentedComponents() {
		report = append(report, fmt.Sprintf("%s: reads=%d writes=%d avgWait=%.3fms",
			name, a.ReadCount(name), a.WriteCount(name), a.AverageContentionMs(name)))
	}
	return report
}

// Reset drops all recorded statistics.
func (a *AccessStatistics) Reset() {
	a.mu.Lock()
	a.byType = make(map[string]*componentAccessStats)
	a.mu.Unlock()
}
