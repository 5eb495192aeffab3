package ecs

import (
	"container/heap"
	"reflect"
	"sync"
	"sync/atomic"
)

// MessageBus is a type-indexed publish/subscribe bus. Immediate publishing
// dispatches synchronously; Enqueue defers delivery to the next drain,
// ordered by priority with FIFO among equals.
//
// The handler table and the queue have separate locks; a path that needs
// both (Clear) takes the handler lock first. Dispatch never holds either
// lock, so handlers are free to subscribe, publish, enqueue or drain.
type MessageBus struct {
	mu        sync.RWMutex
	handlers  map[reflect.Type][]*subscription
	nextSubID atomic.Uint64

	queueMu sync.Mutex
	queue   messageHeap
	seq     uint64

	processing atomic.Bool
}

type subscription struct {
	id     uint64
	invoke func(any)
}

// NewMessageBus creates an empty bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		handlers: make(map[reflect.Type][]*subscription),
	}
}

// Subscription identifies one registered handler. Unsubscribe is idempotent
// and safe to call from inside a handler; concurrent Unsubscribe of the
// same Subscription from multiple goroutines is not supported.
type Subscription struct {
	bus *MessageBus
	typ reflect.Type
	id  uint64
}

// Unsubscribe removes the handler from the bus. A dispatch already in
// flight may still invoke it once.
func (s *Subscription) Unsubscribe() {
	if s.bus == nil {
		return
	}
	s.bus.removeSubscription(s.typ, s.id)
	s.bus = nil
}

// Subscribe registers a handler for messages of type T. Handlers for a type
// are invoked in registration order.
func Subscribe[T any](b *MessageBus, fn func(T)) *Subscription {
	typ := reflect.TypeFor[T]()
	sub := &subscription{
		id: b.nextSubID.Add(1),
		invoke: func(m any) {
			fn(m.(T))
		},
	}

	b.mu.Lock()
	b.handlers[typ] = append(b.handlers[typ], sub)
	b.mu.Unlock()

	return &Subscription{bus: b, typ: typ, id: sub.id}
}

// UnsubscribeAll removes every handler registered for type T.
func UnsubscribeAll[T any](b *MessageBus) {
	typ := reflect.TypeFor[T]()
	b.mu.Lock()
	delete(b.handlers, typ)
	b.mu.Unlock()
}

func (b *MessageBus) removeSubscription(typ reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[typ]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[typ] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[typ]) == 0 {
		delete(b.handlers, typ)
	}
}

// PublishImmediate synchronously invokes every handler registered for T, in
// registration order, before returning.
func PublishImmediate[T any](b *MessageBus, msg T) {
	b.dispatch(reflect.TypeFor[T](), msg)
}

// dispatch snapshots the handler list under the read lock and invokes the
// handlers with no lock held, so reentrant bus calls cannot deadlock.
func (b *MessageBus) dispatch(typ reflect.Type, payload any) {
	b.mu.RLock()
	subs := b.handlers[typ]
	snapshot := make([]*subscription, len(subs))
	copy(snapshot, subs)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		sub.invoke(payload)
	}
}

// Enqueue defers msg for the next drain at the given priority. Messages of
// equal priority drain in enqueue order.
func Enqueue[T any](b *MessageBus, msg T, priority MessagePriority) {
	typ := reflect.TypeFor[T]()

	b.queueMu.Lock()
	b.seq++
	heap.Push(&b.queue, queuedMessage{
		typ:      typ,
		payload:  msg,
		priority: priority,
		seq:      b.seq,
	})
	b.queueMu.Unlock()
}

// ProcessQueuedMessages drains the queue, dispatching each message through
// the immediate path, and returns the number dispatched. If another drain
// is in progress the call is a no-op returning 0; queued messages are never
// lost, only left for the active or a later drain. The queue lock is held
// only to pop, so handlers may enqueue or drain reentrantly.
func (b *MessageBus) ProcessQueuedMessages() int {
	if !b.processing.CompareAndSwap(false, true) {
		return 0
	}
	defer b.processing.Store(false)

	dispatched := 0
	for {
		b.queueMu.Lock()
		if len(b.queue) == 0 {
			b.queueMu.Unlock()
			return dispatched
		}
		m := heap.Pop(&b.queue).(queuedMessage)
		b.queueMu.Unlock()

		b.dispatch(m.typ, m.payload)
		dispatched++
	}
}

// Clear removes every handler and every queued message. Intended for full
// subsystem teardown only.
func (b *MessageBus) Clear() {
	b.mu.Lock()
	b.queueMu.Lock()
	b.handlers = make(map[reflect.Type][]*subscription)
	b.queue = nil
	b.queueMu.Unlock()
	b.mu.Unlock()
}

// HandlerCount returns the number of registered handlers across all types.
func (b *MessageBus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, subs := range b.handlers {
		total += len(subs)
	}
	return total
}

// QueuedMessageCount returns the number of messages awaiting a drain.
func (b *MessageBus) QueuedMessageCount() int {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return len(b.queue)
}
