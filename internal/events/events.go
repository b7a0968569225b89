// Package events provides in-process pub/sub used to fan out booking
// mutations to side channels (OTA checklist, sheets sync) without
// coupling the bot handlers to them.
package events

import (
	"sync"
	"time"
)

// Event types published by the bot.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingModified  = "booking.modified"
	TypeBookingCancelled = "booking.cancelled"
)

// BookingEvent describes a booking mutation.
type BookingEvent struct {
	Type      string
	BookingID int64
	RoomNo    string
	CheckIn   string
	CheckOut  string
	At        time.Time
}

// Handler reacts to a booking event.
type Handler func(event BookingEvent)

// Bus provides in-process pub/sub for booking events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handlers run
// synchronously; the caller decides the concurrency model.
func (b *Bus) Publish(event BookingEvent) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.At.IsZero() {
		event.At = time.Now()
	}
	for _, handler := range handlers {
		handler(event)
	}
}
