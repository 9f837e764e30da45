// Package events carries domain events between the quest engine and its collaborators.
package events

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Event is one published domain event.
type Event struct {
	Name    string    `json:"name"`
	QuestID string    `json:"quest,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(Event) error
}

// Handler reacts to a published event. A returned error is reported to the publisher.
type Handler func(Event) error

// Bus is a synchronous in-process fan-out. Handlers run on the publishing goroutine
// in subscription order.
type Bus struct {
	mu     sync.RWMutex
	byName map[string][]Handler
	all    []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{byName: make(map[string][]Handler)}
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byName[name] = append(b.byName[name], h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers e to every matching handler. All handlers run even if some fail;
// their errors are joined. A panicking handler is reported as an error.
func (b *Bus) Publish(e Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.byName[e.Name])+len(b.all))
	handlers = append(handlers, b.byName[e.Name]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := invoke(h, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", e.Name, r)
		}
	}()
	return h(e)
}

// Recorder is a Publisher that keeps every event, for tests and replay.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends e.
func (r *Recorder) Publish(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events called name, in order.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
