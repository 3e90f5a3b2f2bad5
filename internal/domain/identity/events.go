// internal/domain/identity/events.go
package identity

import (
	"sync"
	"time"
)

// TransitionType enumerates authentication state transitions
type TransitionType string

const (
	TransitionSignIn  TransitionType = "sign_in"
	TransitionSignOut TransitionType = "sign_out"
	// TransitionStartup fires once when the identity subsystem has finished
	// initializing and the current owner is known.
	TransitionStartup TransitionType = "startup"
)

// Transition is a discrete auth-state change. Subscribers react exactly once
// per event; nothing polls shared auth state.
type Transition struct {
	Type         TransitionType
	UserID       *uint  // set for sign_in, and for startup when a session is live
	SessionToken string // the anonymous session token involved in the transition
	At           time.Time
}

// Bus fans transitions out to subscribers. Publish delivers synchronously to
// each subscriber channel so event order matches publish order.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Transition
	closed bool
}

// NewBus creates a new transition bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving every subsequent transition
func (b *Bus) Subscribe(buffer int) <-chan Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Transition, buffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers a transition to all subscribers in order
func (b *Bus) Publish(t Transition) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	for _, ch := range b.subs {
		ch <- t
	}
}

// Close closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
