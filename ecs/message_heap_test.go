package ecs

import (
	"container/heap"
	"testing"
)

func TestMessageHeapOrdering(t *testing.T) {
	var h messageHeap

	push := func(p MessagePriority, seq uint64) {
		heap.Push(&h, queuedMessage{priority: p, seq: seq})
	}

	push(PriorityLow, 1)
	push(PriorityCritical, 2)
	push(PriorityNormal, 3)
	push(PriorityCritical, 4)
	push(PriorityHigh, 5)

	wantSeq := []uint64{2, 4, 5, 3, 1}
	for i, want := range wantSeq {
		m := heap.Pop(&h).(queuedMessage)
		if m.seq != want {
			t.Errorf("pop %d: expected seq %d, got %d (priority %s)", i, want, m.seq, m.priority)
		}
	}

	if h.Len() != 0 {
		t.Errorf("expected empty heap, got %d", h.Len())
	}
}

func TestMessagePriorityString(t *testing.T) {
	cases := map[MessagePriority]string{
		PriorityLow:         "low",
		PriorityNormal:      "normal",
		PriorityHigh:        "high",
		PriorityCritical:    "critical",
		MessagePriority(99): "unknown",
	}
	for p, want := range cases {
		if p.String() != want {
			t.Errorf("priority %d: expected %q, got %q", p, want, p.String())
		}
	}
}

func TestTypedPoolBasics(t *testing.T) {
	pool := newTypedPool[int]()

	if !pool.add(1, 10) {
		t.Fatal("first add failed")
	}
	if pool.add(1, 20) {
		t.Error("duplicate add succeeded")
	}

	v, ok := pool.get(1)
	if !ok || *v != 10 {
		t.Errorf("expected 10, got %v (ok=%v)", v, ok)
	}

	if !pool.remove(1) {
		t.Error("remove failed")
	}
	if pool.remove(1) {
		t.Error("second remove succeeded")
	}
	if pool.count() != 0 {
		t.Errorf("expected empty pool, got %d", pool.count())
	}
}
