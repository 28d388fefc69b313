// Package events carries decision lifecycle notifications: an in-process
// pub/sub bus for observers and an append-only journal for audit.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies what happened.
type EventType string

const (
	// EventDecisionServed is published when an operation returns a decision.
	EventDecisionServed EventType = "decision_served"
	// EventFallbackUsed is published when a decision came from the rule engine
	// instead of the primary provider.
	EventFallbackUsed EventType = "fallback_used"
	// EventCacheEvicted is published when a cached decision is dropped.
	EventCacheEvicted EventType = "cache_evicted"
	// EventConfigReloaded is published when the engine picks up new settings.
	EventConfigReloaded EventType = "config_reloaded"
)

// Event is a single bus notification.
type Event struct {
	Type       EventType
	Timestamp  time.Time
	Operation  string
	Source     string
	DecisionID string
	Data       map[string]interface{}
}

// Subscriber receives events for one event type.
type Subscriber func(Event)

// Bus fans events out to subscribers without ever blocking the publisher.
// Each subscriber owns a buffered channel drained by its own goroutine; when
// the buffer is full the event is dropped for that subscriber alone. Decision
// serving must not stall on a slow observer.
type Bus struct {
	mu         sync.RWMutex
	nextID     uint64
	subs       map[EventType]map[uint64]chan Event
	bufferSize int
	dropped    atomic.Uint64
}

// NewBus creates a bus whose subscribers each buffer up to bufferSize events.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subs:       make(map[EventType]map[uint64]chan Event),
		bufferSize: bufferSize,
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function. fn runs on a dedicated goroutine, never on the publisher's.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	id := b.nextID
	b.nextID++

	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]chan Event)
	}
	b.subs[eventType][id] = ch

	go b.deliver(ch, fn)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[eventType][id]; ok {
			delete(b.subs[eventType], id)
			close(ch)
		}
	}
}

// deliver drains one subscriber channel until it is closed. A panicking
// subscriber loses that event but keeps its subscription and the bus alive.
func (b *Bus) deliver(ch <-chan Event, fn Subscriber) {
	for event := range ch {
		invoke(fn, event)
	}
}

func invoke(fn Subscriber, event Event) {
	defer func() {
		recover()
	}()
	fn(event)
}

// Publish sends the event to every subscriber of its type. A zero Timestamp
// is stamped at publish time. Full subscribers are skipped.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.Type] {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many events were discarded because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close tears down every subscription. Pending buffered events are still
// delivered before each subscriber goroutine exits.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, eventType)
	}
}
