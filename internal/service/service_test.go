package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorhub-portal/internal/client"
	"tutorhub-portal/internal/event"
	"tutorhub-portal/internal/meeting"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/tokenstore"
	"tutorhub-portal/pkg/apierror"
)

type recorded struct {
	method string
	uri    string
	body   string
}

type recorder struct {
	mu       sync.Mutex
	requests []recorded
	reply    any
}

func (rec *recorder) setReply(v any) {
	rec.mu.Lock()
	rec.reply = v
	rec.mu.Unlock()
}

func (rec *recorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.requests)
}

func (rec *recorder) last() recorded {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.requests[len(rec.requests)-1]
}

func newAPI(t *testing.T, reply any) (*client.Coordinator, *recorder) {
	t.Helper()

	rec := &recorder{reply: reply}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		rec.mu.Lock()
		rec.requests = append(rec.requests, recorded{method: r.Method, uri: r.URL.RequestURI(), body: string(body)})
		reply := rec.reply
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if reply == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)

	store := tokenstore.NewMemory()
	require.NoError(t, store.Write(context.Background(), tokenstore.KeyAccessToken, "tok"))
	return client.NewCoordinator(client.New(server.URL+"/api", store), store), rec
}

func TestGigService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api, rec := newAPI(t, []model.Gig{{ID: 1, Title: "Calculus", HourlyRate: 40}})
	gigs := NewGigService(api)

	list, err := gigs.List(ctx, 12)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "/api/gigs/?tutor_id=12", rec.last().uri)

	rec.setReply(model.Gig{ID: 2, Title: "Chemistry"})
	created, err := gigs.Create(ctx, model.Gig{Title: "Chemistry", HourlyRate: 25})
	require.NoError(t, err)
	require.Equal(t, int64(2), created.ID)
	require.Equal(t, http.MethodPost, rec.last().method)
	require.JSONEq(t, `{"id":0,"title":"Chemistry","subject":"","hourly_rate":25,"tutor_id":0,"status":""}`, rec.last().body)

	_, err = gigs.Update(ctx, model.Gig{ID: 2, Title: "Organic chemistry"})
	require.NoError(t, err)
	require.Equal(t, "/api/gigs/2/", rec.last().uri)
	require.Equal(t, http.MethodPut, rec.last().method)

	rec.setReply(nil)
	require.NoError(t, gigs.Delete(ctx, 2))
	require.Equal(t, http.MethodDelete, rec.last().method)
}

func TestGigServiceValidation(t *testing.T) {
	t.Parallel()

	api, rec := newAPI(t, nil)
	gigs := NewGigService(api)

	_, err := gigs.Create(context.Background(), model.Gig{Title: "  "})
	require.Equal(t, http.StatusBadRequest, apierror.Status(err))

	_, err = gigs.Create(context.Background(), model.Gig{Title: "Maths", HourlyRate: -1})
	require.Equal(t, http.StatusBadRequest, apierror.Status(err))

	_, err = gigs.Get(context.Background(), 0)
	require.Equal(t, http.StatusBadRequest, apierror.Status(err))

	require.Zero(t, rec.count())
}

func TestSessionService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api, rec := newAPI(t, []model.TutoringSession{})
	sessions := NewSessionService(api)

	verified := true
	_, err := sessions.List(ctx, SessionFilter{TutorID: 3, Verified: &verified})
	require.NoError(t, err)
	require.Equal(t, "/api/sessions/?is_verified=true&tutor_id=3", rec.last().uri)

	rec.setReply(model.Meeting{SessionID: 5, ExtensionsUsed: 1, MaxExtensions: 2})
	m, err := sessions.Extend(ctx, 5, 15)
	require.NoError(t, err)
	require.Equal(t, 1, m.ExtensionsUsed)
	require.Equal(t, "/api/sessions/5/extend/", rec.last().uri)
	require.JSONEq(t, `{"minutes":15}`, rec.last().body)

	_, err = sessions.Verify(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, "/api/sessions/5/verify/", rec.last().uri)

	_, err = sessions.Extend(ctx, 5, 0)
	require.Equal(t, http.StatusBadRequest, apierror.Status(err))

	_, err = sessions.Create(ctx, model.TutoringSession{GigID: 1})
	require.Equal(t, http.StatusBadRequest, apierror.Status(err))
}

func TestTutorAndAdminServices(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api, rec := newAPI(t, []model.TutoringSession{{ID: 1, Hours: 2}})
	got, err := NewTutorService(api).Sessions(ctx, 8)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "/api/sessions/?tutor_id=8", rec.last().uri)

	rec.setReply(model.User{ID: 4, IsActive: false})
	user, err := NewAdminService(api).SetActive(ctx, 4, false)
	require.NoError(t, err)
	require.False(t, user.IsActive)
	require.Equal(t, http.MethodPatch, rec.last().method)
	require.Equal(t, "/api/admin/users/4/", rec.last().uri)
	require.JSONEq(t, `{"is_active":false}`, rec.last().body)

	_, err = NewAdminService(api).ApproveTutor(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, "/api/admin/users/4/approve/", rec.last().uri)
}

func TestRegistryReusesAndEvicts(t *testing.T) {
	t.Parallel()

	stores := tokenstore.NewMemoryFactory()
	reg := NewRegistry(stores, event.NewBus(), RegistryOptions{
		BaseURL: "http://127.0.0.1:1/api",
		IdleTTL: time.Minute,
	})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	ctx := context.Background()
	a := reg.Get(ctx, "a")
	require.Same(t, a, reg.Get(ctx, "a"))
	require.False(t, a.IsAuthenticated())

	b := reg.Get(ctx, "b")
	require.NotSame(t, a, b)
	require.Equal(t, 2, reg.Len())

	require.NoError(t, stores.Scoped("a").Write(ctx, tokenstore.KeyAccessToken, "x"))

	now = now.Add(45 * time.Second)
	_, ok := reg.Peek("b")
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	require.Equal(t, 1, reg.Evict())

	_, ok = reg.Peek("a")
	require.False(t, ok)
	_, ok = stores.Scoped("a").Read(ctx, tokenstore.KeyAccessToken)
	require.False(t, ok)

	reg.Forget("b")
	require.Zero(t, reg.Len())
}

type noExtensions struct{}

func (noExtensions) Extend(context.Context, int64, int) (model.Meeting, error) {
	return model.Meeting{}, meeting.ErrNoExtensionsLeft
}

func TestRegistryHeldSessionsSurviveAndForgottenOnesStopMeetings(t *testing.T) {
	t.Parallel()

	tracker := meeting.NewTracker(event.NewBus(), meeting.Options{Tick: time.Hour})
	t.Cleanup(tracker.StopAll)

	var forgotten []string
	reg := NewRegistry(tokenstore.NewMemoryFactory(), event.NewBus(), RegistryOptions{
		BaseURL: "http://127.0.0.1:1/api",
		IdleTTL: time.Hour,
		OnForget: func(id string) {
			forgotten = append(forgotten, id)
			tracker.StopScope(id)
		},
	})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	ctx := context.Background()
	reg.Get(ctx, "watcher")
	tracker.Start("watcher", model.Meeting{SessionID: 5, EndsAt: time.Now().Add(3 * time.Hour)}, noExtensions{})

	release := reg.Hold("watcher")
	now = now.Add(2 * time.Hour)
	require.Zero(t, reg.Evict(), "an open event stream keeps the session")
	_, ok := tracker.Get("watcher", 5)
	require.True(t, ok)

	release()
	release()
	now = now.Add(30 * time.Minute)
	require.Zero(t, reg.Evict(), "closing the stream counts as activity")

	now = now.Add(2 * time.Hour)
	require.Equal(t, 1, reg.Evict())
	require.Equal(t, []string{"watcher"}, forgotten)
	_, ok = tracker.Get("watcher", 5)
	require.False(t, ok, "an evicted session's meetings stop")

	reg.Get(ctx, "leaver")
	tracker.Start("leaver", model.Meeting{SessionID: 6, EndsAt: time.Now().Add(time.Hour)}, noExtensions{})
	reg.Forget("leaver")
	_, ok = tracker.Get("leaver", 6)
	require.False(t, ok)

	require.NotPanics(t, func() { reg.Hold("unknown")() })
}
