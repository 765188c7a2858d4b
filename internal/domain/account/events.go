package account

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session event types.
const (
	EventSignedIn        = "signed_in"
	EventSignedOut       = "signed_out"
	EventPasswordUpdated = "password_updated"
)

// Event is a change of a principal's session state.
type Event struct {
	Type        string
	PrincipalID uuid.UUID
	At          time.Time
}

type subscriber struct {
	id int
	fn func(Event)
}

// Events fans session events out to subscribers, synchronously and in
// subscription order.
type Events struct {
	mu   sync.RWMutex
	next int
	subs []subscriber
}

func NewEvents() *Events {
	return &Events{}
}

// Subscribe registers fn and returns a function that removes it.
func (e *Events) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	id := e.next
	e.next++
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

func (e *Events) Publish(ev Event) {
	e.mu.RLock()
	subs := e.subs
	e.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
