package ecs

import "reflect"

// MessagePriority orders queued messages. Higher priorities drain first.
type MessagePriority uint8

const (
	PriorityLow MessagePriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p MessagePriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// queuedMessage is one deferred message. seq is a monotonic counter taken at
// enqueue time; within equal priority, lower seq drains first, giving
// deterministic FIFO ordering.
type queuedMessage struct {
	typ      reflect.Type
	payload  any
	priority MessagePriority
	seq      uint64
}

// messageHeap is a binary heap ordered by (priority desc, seq asc).
type messageHeap []queuedMessage

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) {
	*h = append(*h, x.(queuedMessage))
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	old[n-1] = queuedMessage{}
	*h = old[:n-1]
	return m
}
