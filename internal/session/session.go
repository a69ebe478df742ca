// Package session is the single authority on who is logged in.
//
// A Manager hydrates from the token store, logs users in and out, enforces
// the login gates and publishes every state change on an event bus. It is
// built per client (per browser in the portal, per process in the CLI) and
// holds no package-level state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"tutorhub-portal/internal/client"
	"tutorhub-portal/internal/event"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/tokenstore"
)

type Phase string

const (
	PhaseUninitialized   Phase = "uninitialized"
	PhaseLoading         Phase = "loading"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

type State struct {
	Phase           Phase               `json:"phase"`
	User            *model.User         `json:"user"`
	TutorProfile    *model.TutorProfile `json:"tutor_profile"`
	Tutor           *model.TutorProfile `json:"tutor"`
	IsAuthenticated bool                `json:"is_authenticated"`
	IsLoading       bool                `json:"is_loading"`
}

func (s State) clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	out.TutorProfile = cloneTutor(s.TutorProfile)
	out.Tutor = cloneTutor(s.Tutor)
	return out
}

func cloneTutor(p *model.TutorProfile) *model.TutorProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Subjects = append([]string(nil), p.Subjects...)
	return &c
}

type Manager struct {
	api   *client.Coordinator
	store tokenstore.Store
	bus   event.Bus
	scope string
	log   *slog.Logger

	mu    sync.RWMutex
	state State
}

type Option func(*Manager)

// WithBus publishes state changes on bus instead of a private one.
func WithBus(bus event.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithScope tags published events, e.g. with the portal's browser session id.
func WithScope(scope string) Option {
	return func(m *Manager) { m.scope = scope }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func New(api *client.Coordinator, opts ...Option) *Manager {
	m := &Manager{
		api:   api,
		store: api.Store(),
		log:   slog.Default(),
		state: State{Phase: PhaseUninitialized},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = event.NewBus()
	}
	m.log = m.log.With("component", "session")
	if m.scope != "" {
		m.log = m.log.With("scope", m.scope)
	}

	api.SetExpiryHook(m.handleExpired)
	api.SetRefreshHook(func(context.Context) {
		m.publish(event.TypeSessionRefreshed, nil)
	})
	return m
}

// Subscribe returns this manager's state-change events.
func (m *Manager) Subscribe() (<-chan event.Event, func()) {
	return m.bus.Subscribe(m.scope)
}

// API returns the refresh-aware client this session authenticates.
func (m *Manager) API() *client.Coordinator {
	return m.api
}

// Restore hydrates state from the token store without touching the network
// and reports whether cached credentials were found.
func (m *Manager) Restore(ctx context.Context) bool {
	cached, hasCredentials := m.readCache(ctx)

	m.mu.Lock()
	m.state = cached
	m.mu.Unlock()

	return hasCredentials
}

// Init runs the startup transition: Loading, then Authenticated when cached
// credentials exist, the backend accepts them and the cached user still
// passes the login gates. Any failure clears credentials.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	m.state.Phase = PhaseLoading
	m.state.IsLoading = true
	m.mu.Unlock()

	gen := m.api.Generation()
	cached, hasCredentials := m.readCache(ctx)
	if !hasCredentials {
		m.resetLocal(ctx, gen, "")
		return nil
	}

	m.mu.Lock()
	m.state.User = cached.User
	m.state.TutorProfile = cached.TutorProfile
	m.state.Tutor = cached.Tutor
	m.mu.Unlock()

	res := m.api.Execute(ctx, client.PathCheckAuth, client.RequestOptions{Method: http.MethodGet})
	if res.Err != nil {
		if errors.Is(res.Err, model.ErrStaleSession) {
			return nil
		}
		m.log.Info("stored session rejected", "error", res.Err)
		m.resetLocal(ctx, m.api.Generation(), "")
		return fmt.Errorf("check stored session: %w", res.Err)
	}

	if err := CheckGates(*cached.User); err != nil {
		m.log.Info("stored user no longer passes login gates", "user_id", cached.User.ID, "error", err)
		m.resetLocal(ctx, gen, "")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.api.Generation() != gen {
		return nil
	}
	token, ok := m.store.Read(ctx, tokenstore.KeyAccessToken)
	m.state.IsLoading = false
	if ok && token != "" {
		m.state.Phase = PhaseAuthenticated
		m.state.IsAuthenticated = true
	} else {
		m.state = State{Phase: PhaseUnauthenticated}
	}
	return nil
}

// Login exchanges credentials for tokens, applies the login gates and, when
// they pass, persists the session.
func (m *Manager) Login(ctx context.Context, email string, password string) (State, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return m.State(), fmt.Errorf("%w: email and password are required", model.ErrInvalidInput)
	}

	res := m.api.Do(ctx, client.PathLogin, client.RequestOptions{
		Method:   http.MethodPost,
		Body:     model.LoginRequest{Email: email, Password: password},
		SkipAuth: true,
	})
	switch {
	case res.Kind == client.KindAuthExpired:
		return m.State(), fmt.Errorf("%w (%w)", model.ErrInvalidCredentials, res.Err)
	case res.Err != nil:
		return m.State(), res.Err
	}

	var payload model.LoginResponse
	if err := res.Decode(&payload); err != nil {
		return m.State(), err
	}
	if payload.AccessToken == "" || payload.User == nil {
		return m.State(), errors.New("login response is missing credentials")
	}

	if err := CheckGates(*payload.User); err != nil {
		m.log.Info("login blocked", "user_id", payload.User.ID, "reason", err)
		return m.State(), err
	}

	m.api.Advance()
	if err := m.persist(ctx, payload); err != nil {
		_ = m.store.ClearAll(ctx)
		return m.State(), err
	}

	m.mu.Lock()
	m.state = State{
		Phase:           PhaseAuthenticated,
		User:            payload.User,
		TutorProfile:    payload.TutorProfile,
		Tutor:           payload.Tutor,
		IsAuthenticated: true,
	}
	snapshot := m.state.clone()
	m.mu.Unlock()

	m.log.Info("login succeeded", "user_id", payload.User.ID, "user_type", payload.User.UserType)
	m.publish(event.TypeSessionLogin, snapshot)
	return snapshot, nil
}

// Logout invalidates the refresh token remotely when it can and always
// clears local state. Calling it while logged out is a no-op.
func (m *Manager) Logout(ctx context.Context) {
	if refreshToken, ok := m.store.Read(ctx, tokenstore.KeyRefreshToken); ok && refreshToken != "" {
		res := m.api.Do(ctx, client.PathLogout, client.RequestOptions{
			Method: http.MethodPost,
			Body:   model.RefreshRequest{RefreshToken: refreshToken},
		})
		if res.Err != nil {
			m.log.Warn("remote logout failed; clearing local session anyway", "error", res.Err)
		}
	}

	m.api.Advance()
	m.resetLocal(ctx, m.api.Generation(), event.TypeSessionLogout)
}

func (m *Manager) UpdateUser(ctx context.Context, user model.User) error {
	if !m.IsAuthenticated() {
		return model.ErrNotAuthenticated
	}
	if err := tokenstore.WriteJSON(ctx, m.store, tokenstore.KeyUserData, user); err != nil {
		return fmt.Errorf("cache user: %w", err)
	}

	m.mu.Lock()
	m.state.User = &user
	snapshot := m.state.clone()
	m.mu.Unlock()

	m.publish(event.TypeSessionUpdated, snapshot)
	return nil
}

func (m *Manager) UpdateTutorProfile(ctx context.Context, profile *model.TutorProfile) error {
	return m.updateTutorRecord(ctx, tokenstore.KeyTutorProfile, profile, func(s *State) { s.TutorProfile = profile })
}

func (m *Manager) UpdateTutor(ctx context.Context, tutor *model.TutorProfile) error {
	return m.updateTutorRecord(ctx, tokenstore.KeyTutorInfo, tutor, func(s *State) { s.Tutor = tutor })
}

func (m *Manager) updateTutorRecord(ctx context.Context, key string, record *model.TutorProfile, apply func(*State)) error {
	if !m.IsAuthenticated() {
		return model.ErrNotAuthenticated
	}
	if err := tokenstore.WriteJSON(ctx, m.store, key, record); err != nil {
		return fmt.Errorf("cache %s: %w", key, err)
	}

	m.mu.Lock()
	apply(&m.state)
	snapshot := m.state.clone()
	m.mu.Unlock()

	m.publish(event.TypeSessionUpdated, snapshot)
	return nil
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.IsAuthenticated
}

// handleExpired runs after the refresh coordinator gave up and cleared the
// store.
func (m *Manager) handleExpired(ctx context.Context) {
	m.mu.Lock()
	wasAuthenticated, user := m.state.IsAuthenticated, m.state.User
	m.state = State{Phase: PhaseUnauthenticated}
	m.mu.Unlock()

	if wasAuthenticated {
		m.log.Warn("session expired")
		m.publish(event.TypeSessionExpired, user)
	}
}

// resetLocal clears the store and drops to Unauthenticated, unless another
// login already started a newer generation.
func (m *Manager) resetLocal(ctx context.Context, gen uint64, typ event.Type) {
	if m.api.Generation() != gen {
		return
	}
	if err := m.store.ClearAll(ctx); err != nil {
		m.log.Error("failed to clear credentials", "error", err)
	}

	m.mu.Lock()
	wasAuthenticated, user := m.state.IsAuthenticated, m.state.User
	m.state = State{Phase: PhaseUnauthenticated}
	m.mu.Unlock()

	// Logout and expiry events carry the user who just left.
	if typ != "" && wasAuthenticated {
		m.log.Info("logged out")
		m.publish(typ, user)
	}
}

func (m *Manager) readCache(ctx context.Context) (State, bool) {
	state := State{Phase: PhaseUnauthenticated}

	var user model.User
	if !tokenstore.ReadJSON(ctx, m.store, tokenstore.KeyUserData, &user) {
		return state, false
	}
	state.User = &user

	var profile model.TutorProfile
	if tokenstore.ReadJSON(ctx, m.store, tokenstore.KeyTutorProfile, &profile) {
		state.TutorProfile = &profile
	}
	var tutor model.TutorProfile
	if tokenstore.ReadJSON(ctx, m.store, tokenstore.KeyTutorInfo, &tutor) {
		state.Tutor = &tutor
	}

	access, hasAccess := m.store.Read(ctx, tokenstore.KeyAccessToken)
	refresh, hasRefresh := m.store.Read(ctx, tokenstore.KeyRefreshToken)
	hasAccess = hasAccess && access != ""
	hasRefresh = hasRefresh && refresh != ""

	if hasAccess {
		state.Phase = PhaseAuthenticated
		state.IsAuthenticated = true
	}
	return state, hasAccess || hasRefresh
}

func (m *Manager) persist(ctx context.Context, payload model.LoginResponse) error {
	if err := m.store.Write(ctx, tokenstore.KeyAccessToken, payload.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if err := m.store.Write(ctx, tokenstore.KeyRefreshToken, payload.RefreshToken); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	if err := tokenstore.WriteJSON(ctx, m.store, tokenstore.KeyUserData, payload.User); err != nil {
		return err
	}
	if err := tokenstore.WriteJSON(ctx, m.store, tokenstore.KeyTutorProfile, payload.TutorProfile); err != nil {
		return err
	}
	return tokenstore.WriteJSON(ctx, m.store, tokenstore.KeyTutorInfo, payload.Tutor)
}

func (m *Manager) publish(typ event.Type, payload any) {
	m.bus.Publish(event.New(typ, m.scope, payload))
}
