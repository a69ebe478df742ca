package meeting

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tutorhub-portal/internal/event"
	"tutorhub-portal/internal/model"
)

type fakeExtender struct {
	calls atomic.Int32
	err   error
	grant time.Duration
}

func (f *fakeExtender) Extend(_ context.Context, id int64, minutes int) (model.Meeting, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return model.Meeting{}, f.err
	}
	return model.Meeting{
		SessionID:      id,
		EndsAt:         time.Now().Add(f.grant),
		ExtensionsUsed: int(n),
		MaxExtensions:  1,
	}, nil
}

func collect(t *testing.T, ch <-chan event.Event, until event.Type) []event.Type {
	t.Helper()
	var seen []event.Type
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e := <-ch:
			seen = append(seen, e.Type)
			if e.Type == until {
				return seen
			}
		case <-timeout:
			t.Fatalf("no %s event; saw %v", until, seen)
		}
	}
}

func count(types []event.Type, typ event.Type) int {
	n := 0
	for _, t := range types {
		if t == typ {
			n++
		}
	}
	return n
}

func TestCountdownWarnsOnceThenEnds(t *testing.T) {
	t.Parallel()

	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe("browser-1")
	defer unsubscribe()

	m := model.Meeting{SessionID: 3, EndsAt: time.Now().Add(150 * time.Millisecond)}
	c := NewCountdown(m, &fakeExtender{}, bus, "browser-1", Options{Warning: 80 * time.Millisecond, Tick: 10 * time.Millisecond})
	c.Start(context.Background())
	defer c.Stop()

	seen := collect(t, events, event.TypeMeetingEnded)
	require.Equal(t, 1, count(seen, event.TypeMeetingWarning))
	require.Greater(t, count(seen, event.TypeMeetingTick), 1)
	require.True(t, c.Status().Ended)
	require.Zero(t, c.Status().RemainingSeconds)

	_, err := c.Extend(context.Background(), 10)
	require.ErrorIs(t, err, ErrMeetingEnded)
}

func TestCountdownStopEndsTicker(t *testing.T) {
	t.Parallel()

	m := model.Meeting{SessionID: 3, EndsAt: time.Now().Add(time.Hour)}
	c := NewCountdown(m, &fakeExtender{}, nil, "", Options{Tick: 5 * time.Millisecond})
	c.Start(context.Background())
	c.Start(context.Background())

	c.Stop()
	c.Stop()
	require.False(t, c.Status().Ended)
	require.Equal(t, 3600, c.Status().RemainingSeconds)
}

func TestCountdownExtendIsBounded(t *testing.T) {
	t.Parallel()

	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe("")
	defer unsubscribe()

	ext := &fakeExtender{grant: 20 * time.Minute}
	m := model.Meeting{SessionID: 9, EndsAt: time.Now().Add(time.Minute), MaxExtensions: 1}
	c := NewCountdown(m, ext, bus, "browser-2", Options{Warning: 2 * time.Minute})

	status, err := c.Extend(context.Background(), 15)
	require.NoError(t, err)
	require.Equal(t, 1, status.ExtensionsUsed)
	require.Greater(t, status.RemainingSeconds, 19*60)
	require.Equal(t, event.TypeMeetingExtended, (<-events).Type)

	_, err = c.Extend(context.Background(), 15)
	require.ErrorIs(t, err, ErrNoExtensionsLeft)
	require.True(t, IsLimit(err))
	require.Equal(t, int32(1), ext.calls.Load())
}

func TestCountdownExtendPassesBackendErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("backend down")
	c := NewCountdown(model.Meeting{SessionID: 1, EndsAt: time.Now().Add(time.Minute)}, &fakeExtender{err: boom}, nil, "", Options{})

	_, err := c.Extend(context.Background(), 5)
	require.ErrorIs(t, err, boom)
	require.False(t, IsLimit(err))
}

func TestTrackerScopes(t *testing.T) {
	t.Parallel()

	tr := NewTracker(event.Discard{}, Options{Tick: 10 * time.Millisecond})
	ends := time.Now().Add(time.Hour)

	first := tr.Start("a", model.Meeting{SessionID: 1, EndsAt: ends}, &fakeExtender{})
	again := tr.Start("a", model.Meeting{SessionID: 1, EndsAt: ends}, &fakeExtender{})
	tr.Start("b", model.Meeting{SessionID: 1, EndsAt: ends}, &fakeExtender{})

	got, ok := tr.Get("a", 1)
	require.True(t, ok)
	require.Same(t, again, got)
	require.NotSame(t, first, got)

	tr.StopScope("a")
	_, ok = tr.Get("a", 1)
	require.False(t, ok)
	_, ok = tr.Get("b", 1)
	require.True(t, ok)

	tr.StopAll()
	_, ok = tr.Get("b", 1)
	require.False(t, ok)
}
