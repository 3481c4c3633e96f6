// internal/events/bus.go

// Package events fans diary state changes out to the presentation layer.
package events

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type EventType string

const (
	EntryOptimistic EventType = "entry.optimistic"
	EntryConfirmed  EventType = "entry.confirmed"
	EntryRolledBack EventType = "entry.rolled_back"
	EntryCancelled  EventType = "entry.cancelled"
	EntryDeleted    EventType = "entry.deleted"
	DayUpdated      EventType = "day.updated"
)

// Event carries one state change. Data holds a typed payload such as
// models.DiaryEntry or diary.View; Err is set on rollbacks.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	EntryID   string      `json:"entry_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Err       error       `json:"-"`
}

type Handler func(Event)

// Bus delivers events synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]subscription
	log      zerolog.Logger
}

type subscription struct {
	types   map[EventType]bool
	handler Handler
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[int]subscription),
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers h for the given types, or for every type when none are given.
// The returned func removes the subscription.
func (b *Bus) Subscribe(h Handler, types ...EventType) func() {
	sub := subscription{handler: h}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Emit stamps e and hands it to every matching subscriber.
func (b *Bus) Emit(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	subs := make([]subscription, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, b.handlers[id])
	}
	b.mu.RUnlock()

	ev := b.log.Debug().Str("type", string(e.Type))
	if e.EntryID != "" {
		ev = ev.Str("entry_id", e.EntryID)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg("Event emitted")

	for _, s := range subs {
		if s.types != nil && !s.types[e.Type] {
			continue
		}
		s.handler(e)
	}
}
