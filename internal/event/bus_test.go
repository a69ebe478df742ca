package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBusScopes(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	mine, unsubMine := bus.Subscribe("browser-a")
	defer unsubMine()
	all, unsubAll := bus.Subscribe("")
	defer unsubAll()

	bus.Publish(New(TypeSessionLogin, "browser-b", nil))
	bus.Publish(New(TypeSessionLogout, "browser-a", nil))

	require.Equal(t, TypeSessionLogin, receive(t, all).Type)
	require.Equal(t, TypeSessionLogout, receive(t, all).Type)
	require.Equal(t, TypeSessionLogout, receive(t, mine).Type)

	select {
	case e := <-mine:
		t.Fatalf("unexpected event %s", e.Type)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe("")
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	require.False(t, open)

	bus.Publish(New(TypeMeetingTick, "", 10))
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe("")
	defer unsubscribe()

	for i := 0; i < 200; i++ {
		bus.Publish(New(TypeMeetingTick, "", i))
	}
	require.Len(t, ch, cap(ch))
}
