// internal/domain/identity/events_test.go
package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ch := bus.Subscribe(4)

	uid := uint(7)
	bus.Publish(Transition{Type: TransitionSignIn, UserID: &uid, SessionToken: "s1"})
	bus.Publish(Transition{Type: TransitionSignOut, SessionToken: "s1"})

	first := <-ch
	second := <-ch
	assert.Equal(t, TransitionSignIn, first.Type)
	assert.False(t, first.At.IsZero(), "publish stamps the event time")
	assert.Equal(t, TransitionSignOut, second.Type)
}

func TestBusFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	a := bus.Subscribe(1)
	b := bus.Subscribe(1)

	bus.Publish(Transition{Type: TransitionStartup, SessionToken: "s1"})

	assert.Equal(t, TransitionStartup, (<-a).Type)
	assert.Equal(t, TransitionStartup, (<-b).Type)
}

func TestBusCloseEndsSubscriptions(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)

	bus.Close()

	_, open := <-ch
	require.False(t, open)

	// Publishing after close is a no-op, not a panic.
	bus.Publish(Transition{Type: TransitionSignIn, SessionToken: "s1"})
}
