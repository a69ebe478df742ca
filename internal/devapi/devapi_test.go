package devapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tutorhub-portal/internal/model"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(Options{JWTSecret: "test-secret", BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func login(t *testing.T, ts *httptest.Server, email string) model.LoginResponse {
	t.Helper()
	var resp model.LoginResponse
	status := call(t, ts, http.MethodPost, "/api/auth/login/", "", model.LoginRequest{Email: email, Password: DefaultPassword}, &resp)
	require.Equal(t, http.StatusOK, status)
	return resp
}

func TestLogin(t *testing.T) {
	_, ts := newTestServer(t)

	t.Run("tutor gets profile and tutor record", func(t *testing.T) {
		resp := login(t, ts, "Tutor@TutorHub.dev")
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)
		require.NotNil(t, resp.User)
		assert.Equal(t, model.UserTypeTutor, resp.User.UserType)
		require.NotNil(t, resp.Tutor)
		assert.Equal(t, "TUT-0001", resp.Tutor.TutorID)
		require.NotNil(t, resp.TutorProfile)
	})

	t.Run("gated accounts still receive tokens", func(t *testing.T) {
		resp := login(t, ts, "unverified@tutorhub.dev")
		require.NotEmpty(t, resp.AccessToken)
		assert.False(t, resp.User.IsVerified)
		assert.Nil(t, resp.Tutor)
	})

	t.Run("wrong password", func(t *testing.T) {
		var body map[string]string
		status := call(t, ts, http.MethodPost, "/api/auth/login/", "", model.LoginRequest{Email: "tutor@tutorhub.dev", Password: "nope"}, &body)
		require.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "No active account found with the given credentials", body["detail"])
	})

	t.Run("missing fields", func(t *testing.T) {
		var body map[string]string
		status := call(t, ts, http.MethodPost, "/api/auth/login/", "", model.LoginRequest{Email: "tutor@tutorhub.dev"}, &body)
		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Email and password are required", body["error"])
	})
}

func TestTokenLifecycle(t *testing.T) {
	srv, ts := newTestServer(t)
	creds := login(t, ts, "admin@tutorhub.dev")

	var body map[string]any
	require.Equal(t, http.StatusUnauthorized, call(t, ts, http.MethodGet, "/api/auth/check-auth/", "", nil, &body))
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/api/auth/check-auth/", creds.AccessToken, nil, &body))
	assert.Equal(t, true, body["authenticated"])

	require.Equal(t, http.StatusUnauthorized, call(t, ts, http.MethodGet, "/api/auth/check-auth/", creds.RefreshToken, nil, nil), "refresh tokens are not access tokens")

	srv.Auth().RevokeAccessTokens()
	var rejected map[string]string
	require.Equal(t, http.StatusUnauthorized, call(t, ts, http.MethodGet, "/api/auth/me/", creds.AccessToken, nil, &rejected))
	assert.Equal(t, "token_not_valid", rejected["code"])

	var refreshed model.RefreshResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/api/auth/token/refresh/", "", model.RefreshRequest{RefreshToken: creds.RefreshToken}, &refreshed))
	require.NotEmpty(t, refreshed.AccessToken)
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/api/auth/me/", refreshed.AccessToken, nil, nil))

	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/api/auth/logout/", "", model.RefreshRequest{RefreshToken: creds.RefreshToken}, nil))
	require.Equal(t, http.StatusUnauthorized, call(t, ts, http.MethodPost, "/api/auth/token/refresh/", "", model.RefreshRequest{RefreshToken: creds.RefreshToken}, nil))
}

func TestGigs(t *testing.T) {
	_, ts := newTestServer(t)
	tutor := login(t, ts, "tutor@tutorhub.dev").AccessToken
	stranger := login(t, ts, "newtutor@tutorhub.dev").AccessToken

	var gigs []model.Gig
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/api/gigs/", tutor, nil, &gigs))
	require.Len(t, gigs, 2)

	var errBody map[string]string
	require.Equal(t, http.StatusBadRequest, call(t, ts, http.MethodPost, "/api/gigs/", tutor, model.Gig{HourlyRate: 20}, &errBody))
	assert.Equal(t, "Gig title is required", errBody["error"])

	var created model.Gig
	require.Equal(t, http.StatusCreated, call(t, ts, http.MethodPost, "/api/gigs/", tutor, model.Gig{Title: "Calculus", Subject: "Mathematics", HourlyRate: 50, TutorID: 99}, &created))
	assert.Equal(t, int64(1), created.TutorID, "tutors always create gigs for themselves")
	assert.Equal(t, "active", created.Status)

	created.Title = "Calculus II"
	var updated model.Gig
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPut, "/api/gigs/3/", tutor, created, &updated))
	assert.Equal(t, "Calculus II", updated.Title)

	require.Equal(t, http.StatusNotFound, call(t, ts, http.MethodGet, "/api/gigs/3/", stranger, nil, nil))
	require.Equal(t, http.StatusForbidden, call(t, ts, http.MethodPost, "/api/gigs/", stranger, model.Gig{Title: "x", HourlyRate: 1}, nil))

	require.Equal(t, http.StatusNoContent, call(t, ts, http.MethodDelete, "/api/gigs/3/", tutor, nil, nil))
	require.Equal(t, http.StatusNotFound, call(t, ts, http.MethodGet, "/api/gigs/3/", tutor, nil, nil))
}

func TestSessionsAndMeetings(t *testing.T) {
	_, ts := newTestServer(t)
	tutor := login(t, ts, "tutor@tutorhub.dev").AccessToken
	staff := login(t, ts, "staff@tutorhub.dev").AccessToken

	var verified []model.TutoringSession
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/api/sessions/?is_verified=true", tutor, nil, &verified))
	require.Len(t, verified, 3)

	var pending []model.TutoringSession
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/api/sessions/?tutor_id=1&is_verified=false", staff, nil, &pending))
	require.Len(t, pending, 2)

	require.Equal(t, http.StatusForbidden, call(t, ts, http.MethodPost, "/api/sessions/4/verify/", tutor, nil, nil))
	var done model.TutoringSession
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/api/sessions/4/verify/", staff, nil, &done))
	assert.True(t, done.IsVerified)

	require.Equal(t, http.StatusConflict, call(t, ts, http.MethodPost, "/api/sessions/5/extend/", tutor, model.ExtendMeetingRequest{Minutes: 10}, nil))

	var m model.Meeting
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/api/sessions/5/meeting/", tutor, nil, &m))
	assert.Equal(t, int64(5), m.SessionID)
	assert.Equal(t, DefaultMaxExtensions, m.MaxExtensions)
	endsAt := m.EndsAt

	for i := 0; i < DefaultMaxExtensions; i++ {
		require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/api/sessions/5/extend/", tutor, model.ExtendMeetingRequest{Minutes: 10}, &m))
	}
	assert.True(t, endsAt.Add(20*time.Minute).Equal(m.EndsAt))

	var errBody map[string]string
	require.Equal(t, http.StatusConflict, call(t, ts, http.MethodPost, "/api/sessions/5/extend/", tutor, model.ExtendMeetingRequest{Minutes: 10}, &errBody))
	assert.Equal(t, "No extensions left for this meeting", errBody["error"])
}

func TestAdminUsers(t *testing.T) {
	_, ts := newTestServer(t)
	admin := login(t, ts, "admin@tutorhub.dev").AccessToken
	tutor := login(t, ts, "tutor@tutorhub.dev").AccessToken

	var denied map[string]string
	require.Equal(t, http.StatusForbidden, call(t, ts, http.MethodGet, "/api/admin/users/", tutor, nil, &denied))
	assert.Equal(t, "permission_denied", denied["code"])

	var users []model.User
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/api/admin/users/", admin, nil, &users))
	require.Len(t, users, len(DefaultAccounts()))

	var approved model.User
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/api/admin/users/5/approve/", admin, nil, &approved))
	assert.True(t, approved.IsApproved)
	require.Equal(t, http.StatusBadRequest, call(t, ts, http.MethodPost, "/api/admin/users/1/approve/", admin, nil, nil))

	var reactivated model.User
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPatch, "/api/admin/users/6/", admin, map[string]bool{"is_active": true}, &reactivated))
	assert.True(t, reactivated.IsActive)
	require.Equal(t, http.StatusNotFound, call(t, ts, http.MethodPatch, "/api/admin/users/404/", admin, map[string]bool{"is_active": true}, nil))
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
