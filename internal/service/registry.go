package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tutorhub-portal/internal/client"
	"tutorhub-portal/internal/event"
	"tutorhub-portal/internal/session"
	"tutorhub-portal/internal/tokenstore"
)

type RegistryOptions struct {
	BaseURL string
	Timeout time.Duration
	IdleTTL time.Duration
	Metrics *client.Metrics
	// HTTPClient is shared by every visitor's client. Defaults to one with Timeout.
	HTTPClient *http.Client
	// OnForget runs after a visitor's manager was dropped by Forget or Evict.
	OnForget func(id string)
}

type registryEntry struct {
	manager  *session.Manager
	init     sync.Once
	lastSeen time.Time
	holds    int
}

// Registry keeps one session.Manager per browser, keyed by the portal's
// session cookie. Each manager gets its own namespaced token store, client
// and coordinator, so visitors never share tokens or refreshes.
type Registry struct {
	opts   RegistryOptions
	stores tokenstore.Factory
	bus    event.Bus
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

func NewRegistry(stores tokenstore.Factory, bus event.Bus, opts RegistryOptions) *Registry {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Registry{
		opts:    opts,
		stores:  stores,
		bus:     bus,
		now:     time.Now,
		entries: map[string]*registryEntry{},
	}
}

// Get returns the manager for id, creating and initialising it on first use.
// Concurrent first requests for the same id share one Init.
func (r *Registry) Get(ctx context.Context, id string) *session.Manager {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &registryEntry{manager: r.build(id)}
		r.entries[id] = e
	}
	e.lastSeen = r.now()
	r.mu.Unlock()

	e.init.Do(func() {
		if err := e.manager.Init(context.WithoutCancel(ctx)); err != nil {
			slog.Info("stored session not restored", "component", "registry", "scope", id, "error", err)
		}
	})
	return e.manager
}

// Peek returns the manager for id without creating one.
func (r *Registry) Peek(id string) (*session.Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.manager, true
}

// Hold keeps id's manager from being evicted until release is called, e.g.
// for the life of a websocket. Release counts as activity.
func (r *Registry) Hold(id string) (release func()) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return func() {}
	}
	e.holds++
	e.lastSeen = r.now()
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			e.holds--
			e.lastSeen = r.now()
			r.mu.Unlock()
		})
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Forget drops id's manager. Persistent stores keep their rows so the next
// request for id restores from them.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	r.release(id)
}

// Evict forgets every manager idle for longer than IdleTTL and returns how
// many went. Held managers are never idle.
func (r *Registry) Evict() int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.opts.IdleTTL)

	r.mu.Lock()
	var idle []string
	for id, e := range r.entries {
		if e.holds == 0 && e.lastSeen.Before(cutoff) {
			idle = append(idle, id)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, id := range idle {
		r.release(id)
	}
	return len(idle)
}

func (r *Registry) StartEvictionTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				slog.Info("evicted idle portal sessions", "component", "registry", "count", n)
			}
		}
	}
}

func (r *Registry) build(id string) *session.Manager {
	store := r.stores.Scoped(id)
	log := slog.Default().With("scope", id)

	c := client.New(r.opts.BaseURL, store,
		client.WithHTTPClient(r.opts.HTTPClient),
		client.WithLogger(log),
	)
	co := client.NewCoordinator(c, store, client.WithMetrics(r.opts.Metrics))
	return session.New(co, session.WithBus(r.bus), session.WithScope(id))
}

// release drops in-memory namespaces, which cannot be restored anyway, and
// runs OnForget.
func (r *Registry) release(id string) {
	if d, ok := r.stores.(interface{ Drop(string) }); ok {
		d.Drop(id)
	}
	if r.opts.OnForget != nil {
		r.opts.OnForget(id)
	}
}
