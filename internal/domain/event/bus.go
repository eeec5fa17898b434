// Package event implements the bounded, non-blocking Event Bus of
// spec.md §4.9: publish never blocks the tick loop, subscribers receive a
// snapshot-then-invoke dispatch, dropped events are counted, and the bus
// fatally errors if cumulative drops exceed 10% of total published events.
// Grounded on the teacher's per-subscriber buffered-channel coordinator
// (internal/application/mining/coordination/channel_coordinator.go).
package event

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Kind identifies the category of a simulation event.
type Kind string

const (
	KindTaskDispatched Kind = "task_dispatched"
	KindTaskCompleted  Kind = "task_completed"
	KindTaskBlocked    Kind = "task_blocked"
	KindTaskFailed     Kind = "task_failed"
	KindModuleFailed   Kind = "module_failed"
	KindModuleRepaired Kind = "module_repaired"
	KindModuleProduced Kind = "module_produced"
	KindStorageFull    Kind = "storage_full"
	KindMetricsTick    Kind = "metrics_tick"
)

// Event is one immutable fact published to the bus.
type Event struct {
	ID      string
	Kind    Kind
	Tick    int64
	Payload map[string]any
}

// New builds an event with a fresh ID.
func New(kind Kind, tick int64, payload map[string]any) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Tick: tick, Payload: payload}
}

// ErrEventQueueOverflow is a fatal error: cumulative dropped events have
// exceeded the bus's configured tolerance fraction of total published
// events.
type ErrEventQueueOverflow struct {
	Dropped   uint64
	Published uint64
}

func (e ErrEventQueueOverflow) Error() string {
	return fmt.Sprintf("event bus overflow: %d/%d events dropped", e.Dropped, e.Published)
}

const (
	defaultCapacity   = 10000
	defaultHistoryCap = 1000
	overflowFraction  = 0.10
)

type subscriber struct {
	ch     chan Event
	cancel func()
}

// Bus is the bounded event bus. Publish is non-blocking: if a subscriber's
// channel is full, the event is dropped for that subscriber and the bus's
// drop counter is incremented, never the publisher's tick.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	history     []Event
	historyCap  int
	capacity    int
	published   uint64
	dropped     uint64
}

// NewBus builds an empty bus with the default channel capacity and history
// length from spec.md §4.9.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*subscriber),
		historyCap:  defaultHistoryCap,
		capacity:    defaultCapacity,
	}
}

// Subscribe registers a new subscriber and returns its delivery channel plus
// an unsubscribe function. Grounded on the teacher's
// SubscribeToDeposits (<-chan, func()) pattern.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, b.capacity)
	sub := &subscriber{ch: ch}
	sub.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
	}
	b.subscribers[id] = sub
	return ch, sub.cancel
}

// Publish delivers ev to every current subscriber without blocking, appends
// it to the bounded history (trimming the oldest half on overflow, per
// spec.md §6's log-trim rule), and returns ErrEventQueueOverflow if
// cumulative drops now exceed the tolerance fraction of published events.
func (b *Bus) Publish(ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published++

	// snapshot-then-invoke: iterate over the current subscriber set without
	// holding the lock across channel sends of unbounded duration (sends
	// here are always non-blocking via select/default).
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}

	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			b.dropped++
		}
	}

	b.history = append(b.history, ev)
	if len(b.history) > b.historyCap {
		keep := b.historyCap / 2
		b.history = append([]Event(nil), b.history[len(b.history)-keep:]...)
	}

	if b.published > 0 && float64(b.dropped)/float64(b.published) > overflowFraction {
		return ErrEventQueueOverflow{Dropped: b.dropped, Published: b.published}
	}
	return nil
}

// History returns a copy of the bounded recent-event buffer.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.history...)
}

// Stats returns the cumulative published/dropped counters.
func (b *Bus) Stats() (published, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published, b.dropped
}
