package event

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversToEverySubscriber(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	second, unsubSecond := bus.Subscribe()
	defer unsubFirst()
	defer unsubSecond()

	bus.Publish(New(TypeUserLoggedIn, "user-1", Payload{SubjectID: "user-1", Status: "success"}))

	for _, ch := range []<-chan Event{first, second} {
		select {
		case got := <-ch:
			require.Equal(t, TypeUserLoggedIn, got.Type)
			require.Equal(t, "user-1", got.ActorID)
			require.NotEmpty(t, got.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	var dropped atomic.Int32
	bus := NewBus(WithDropHandler(func(Event) { dropped.Add(1) }))
	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for range subscriberBuffer + 3 {
		bus.Publish(New(TypeUserLoginFailed, "", Payload{Status: "failure"}))
	}

	require.Equal(t, int32(3), dropped.Load())
}

func TestUnsubscribeClosesChannelOnce(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	require.False(t, open)

	bus.Publish(New(TypeUserLoggedOut, "user-1", Payload{Status: "success"}))
}
