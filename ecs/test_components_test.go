package ecs_test

import "sync"

// Common test component types
type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

type Health struct {
	Current int
	Max     int
}

type Label struct {
	Value string
}

type AI struct {
	State int
}

// Counter carries an interior mutex, for exercising the Cloner copy path.
type Counter struct {
	mu    *sync.Mutex
	Hits  int
	Total int
}

func NewCounter() Counter {
	return Counter{mu: new(sync.Mutex)}
}

func (c Counter) CloneComponent() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	// The copy gets its own fresh mutex.
	return Counter{mu: new(sync.Mutex), Hits: c.Hits, Total: c.Total}
}

func (c *Counter) Bump(n int) {
	c.mu.Lock()
	c.Hits++
	c.Total += n
	c.mu.Unlock()
}

// Test message types
type TickMessage struct {
	Frame int
}

type AlertMessage struct {
	Text string
}

type TradeMessage struct {
	From, To uint64
	Amount   int
}
