package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorhub-portal/internal/event"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/session"
	"tutorhub-portal/pkg/apierror"
)

func newFileSink(t *testing.T) *FileSink {
	t.Helper()
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "nested", "audit.log"))
	require.NoError(t, err)
	return sink
}

func at(minute int) string {
	return time.Date(2026, 3, 2, 10, minute, 0, 0, time.UTC).Format(time.RFC3339Nano)
}

func TestFileSinkQuery(t *testing.T) {
	ctx := context.Background()
	sink := newFileSink(t)

	entries := []Entry{
		{Action: "session.login", OccurredAt: at(0), UserID: 4, Email: "tutor@tutorhub.dev", UserType: "tutor"},
		{Action: "session.logout", OccurredAt: at(5), UserID: 4, Email: "tutor@tutorhub.dev", UserType: "tutor"},
		{Action: "session.login", OccurredAt: at(10), UserID: 1, Email: "admin@tutorhub.dev", UserType: "admin"},
		{Action: "session.expired", OccurredAt: at(15), UserID: 1, Email: "admin@tutorhub.dev", UserType: "admin"},
	}
	for _, e := range entries {
		require.NoError(t, sink.Append(ctx, e))
	}

	t.Run("newest first", func(t *testing.T) {
		items, meta, err := sink.Query(ctx, Query{})
		require.NoError(t, err)
		require.Len(t, items, 4)
		assert.Equal(t, "session.expired", items[0].Action)
		assert.Equal(t, model.Meta{Page: 1, Limit: 50, Total: 4, TotalPages: 1}, meta)
	})

	t.Run("filters", func(t *testing.T) {
		items, _, err := sink.Query(ctx, Query{Action: "SESSION.LOGIN"})
		require.NoError(t, err)
		require.Len(t, items, 2)

		items, _, err = sink.Query(ctx, Query{Email: "Tutor@TutorHub.dev"})
		require.NoError(t, err)
		require.Len(t, items, 2)

		items, _, err = sink.Query(ctx, Query{UserID: 1, From: at(12)})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "session.expired", items[0].Action)

		items, _, err = sink.Query(ctx, Query{To: at(5)})
		require.NoError(t, err)
		require.Len(t, items, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		items, meta, err := sink.Query(ctx, Query{Page: 2, Limit: 3})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "session.login", items[0].Action)
		assert.Equal(t, 2, meta.TotalPages)

		items, _, err = sink.Query(ctx, Query{Page: 9, Limit: 3})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("bad time", func(t *testing.T) {
		_, _, err := sink.Query(ctx, Query{From: "yesterday"})
		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.HTTPStatus)
	})
}

func TestRecorderKeepsSessionEvents(t *testing.T) {
	sink := newFileSink(t)
	bus := event.NewBus()
	recorder := NewRecorder(bus, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recorder.Run(ctx)

	tutor := &model.User{ID: 4, Email: "tutor@tutorhub.dev", UserType: model.UserTypeTutor}
	bus.Publish(event.New(event.TypeSessionLogin, "browser-a", session.State{User: tutor, IsAuthenticated: true}))
	bus.Publish(event.New(event.TypeMeetingTick, "browser-a", nil))
	bus.Publish(event.New(event.TypeSessionRefreshed, "browser-a", nil))
	bus.Publish(event.New(event.TypeSessionLogout, "browser-a", tutor))

	require.Eventually(t, func() bool {
		items, _, err := sink.Query(context.Background(), Query{})
		return err == nil && len(items) == 2
	}, 2*time.Second, 10*time.Millisecond)

	items, _, err := sink.Query(context.Background(), Query{Action: string(event.TypeSessionLogout)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "browser-a", items[0].Scope)
	assert.Equal(t, int64(4), items[0].UserID)
	assert.Equal(t, model.UserTypeTutor, items[0].UserType)
}

func TestEntryForExpiredWithoutUser(t *testing.T) {
	entry, ok := entryFor(event.New(event.TypeSessionExpired, "x", nil))
	require.True(t, ok)
	assert.Zero(t, entry.UserID)
	assert.Equal(t, "session.expired", entry.Action)
}
