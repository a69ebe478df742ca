package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/tokenstore"
	"tutorhub-portal/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestDoAttachesBearerAndReturnsBody(t *testing.T) {
	t.Parallel()

	var gotAuth, gotContentType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/gigs/", r.URL.Path)
		assert.Equal(t, "X", r.Header.Get("X-Trace"))
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusCreated, map[string]any{"id": 9, "title": "Algebra"})
	}))
	t.Cleanup(server.Close)

	store := tokenstore.NewMemory()
	require.NoError(t, store.Write(context.Background(), tokenstore.KeyAccessToken, "tok"))

	c := New(server.URL+"/api/", store)
	res := c.Do(context.Background(), "gigs/", RequestOptions{
		Method:  http.MethodPost,
		Body:    map[string]string{"title": "Algebra"},
		Headers: map[string]string{"X-Trace": "X"},
	})

	require.Equal(t, KindOK, res.Kind)
	require.Equal(t, http.StatusCreated, res.Status)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "Algebra", gotBody["title"])
	require.Equal(t, "tok", res.AccessToken)

	var gig model.Gig
	require.NoError(t, res.Decode(&gig))
	require.Equal(t, int64(9), gig.ID)
}

func TestDoWithoutTokenOrSkipAuthSendsNoHeader(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	store := tokenstore.NewMemory()
	c := New(server.URL, store)

	res := c.Do(context.Background(), "/auth/check-auth/", RequestOptions{})
	require.Equal(t, KindOK, res.Kind)
	require.JSONEq(t, "null", string(res.Body))

	require.NoError(t, store.Write(context.Background(), tokenstore.KeyAccessToken, "tok"))
	res = c.Do(context.Background(), PathLogin, RequestOptions{Method: http.MethodPost, SkipAuth: true})
	require.Equal(t, KindOK, res.Kind)
}

func TestDoErrorMessages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error field", http.StatusBadRequest, `{"error":"Gig title is required"}`, "Gig title is required"},
		{"detail field", http.StatusForbidden, `{"detail":"You do not have permission"}`, "You do not have permission"},
		{"nested envelope", http.StatusConflict, `{"success":false,"error":{"code":"CONFLICT","message":"already booked"}}`, "already booked"},
		{"no message", http.StatusInternalServerError, `<html>oops</html>`, "HTTP error! status: 500"},
		{"empty body", http.StatusNotFound, ``, "HTTP error! status: 404"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			res := New(server.URL, tokenstore.NewMemory()).Do(context.Background(), "/x", RequestOptions{})
			require.Equal(t, KindFailed, res.Kind)

			var apiErr *apierror.APIError
			require.True(t, errors.As(res.Err, &apiErr))
			require.Equal(t, tc.status, apiErr.HTTPStatus)
			require.Equal(t, tc.message, apiErr.Message)
		})
	}
}

func TestDo401DropsOnlyTheRejectedAccessToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
	}))
	t.Cleanup(server.Close)

	store := tokenstore.NewMemory()
	require.NoError(t, store.Write(ctx, tokenstore.KeyAccessToken, "old"))
	require.NoError(t, store.Write(ctx, tokenstore.KeyRefreshToken, "refresh"))

	res := New(server.URL, store).Do(ctx, "/gigs/", RequestOptions{})
	require.Equal(t, KindAuthExpired, res.Kind)
	require.True(t, IsStatus(res.Err, http.StatusUnauthorized))

	_, ok := store.Read(ctx, tokenstore.KeyAccessToken)
	require.False(t, ok)
	v, ok := store.Read(ctx, tokenstore.KeyRefreshToken)
	require.True(t, ok)
	require.Equal(t, "refresh", v)
}

func TestDoNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	res := New(url, tokenstore.NewMemory()).Do(context.Background(), "/gigs/", RequestOptions{})
	require.Equal(t, KindFailed, res.Kind)
	require.ErrorIs(t, res.Err, model.ErrNetwork)
}

func TestDoCancelledContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(server.URL, tokenstore.NewMemory()).Do(ctx, "/gigs/", RequestOptions{})
	require.Equal(t, KindFailed, res.Kind)
	require.ErrorIs(t, res.Err, context.Canceled)
}

func TestDoKeepsBackendErrorBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Gig title is required"})
	}))
	t.Cleanup(server.Close)

	res := New(server.URL, tokenstore.NewMemory()).Do(context.Background(), "/gigs/", RequestOptions{Method: http.MethodPost})
	require.Equal(t, KindFailed, res.Kind)
	require.Equal(t, http.StatusBadRequest, res.Status)
	require.JSONEq(t, `{"error":"Gig title is required"}`, string(res.Body))

	var gig model.Gig
	require.Error(t, res.Decode(&gig))
}

func TestDo401KeepsATokenWrittenMeanwhile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := tokenstore.NewMemory()
	require.NoError(t, store.Write(ctx, tokenstore.KeyAccessToken, "old"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Another caller refreshes while this request is in flight.
		_ = store.Write(ctx, tokenstore.KeyAccessToken, "fresh")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
	}))
	t.Cleanup(server.Close)

	res := New(server.URL, store).Do(ctx, "/gigs/", RequestOptions{})
	require.Equal(t, KindAuthExpired, res.Kind)
	require.Equal(t, "old", res.AccessToken)

	v, ok := store.Read(ctx, tokenstore.KeyAccessToken)
	require.True(t, ok)
	require.Equal(t, "fresh", v)
}
