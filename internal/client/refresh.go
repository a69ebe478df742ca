package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/tokenstore"
)

// Coordinator recovers from an expired access token: on a 401 it refreshes
// once and retries the original call once. Refreshes for the same refresh
// token are shared between concurrent callers.
//
// Every call is tagged with the session generation it started under. Once
// the generation moves on (login, logout, expiry) the call's result and any
// token it obtained are dropped.
type Coordinator struct {
	doer    Doer
	store   tokenstore.Store
	metrics *Metrics
	log     *slog.Logger

	generation atomic.Uint64
	group      singleflight.Group

	hookMu      sync.RWMutex
	onExpired   func(ctx context.Context)
	onRefreshed func(ctx context.Context)
}

type CoordinatorOption func(*Coordinator)

func WithMetrics(m *Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithExpiryHook registers fn to run after credentials were cleared because
// the session could not be recovered.
func WithExpiryHook(fn func(ctx context.Context)) CoordinatorOption {
	return func(c *Coordinator) { c.onExpired = fn }
}

func NewCoordinator(doer Doer, store tokenstore.Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		doer:  doer,
		store: store,
		log:   slog.Default().With("component", "refresh"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) SetExpiryHook(fn func(ctx context.Context)) {
	c.hookMu.Lock()
	c.onExpired = fn
	c.hookMu.Unlock()
}

func (c *Coordinator) SetRefreshHook(fn func(ctx context.Context)) {
	c.hookMu.Lock()
	c.onRefreshed = fn
	c.hookMu.Unlock()
}

func (c *Coordinator) Store() tokenstore.Store {
	return c.store
}

func (c *Coordinator) Generation() uint64 {
	return c.generation.Load()
}

// Advance starts a new session generation and returns it.
func (c *Coordinator) Advance() uint64 {
	return c.generation.Add(1)
}

// Do issues one request without the refresh policy. Used for login and
// logout, where a 401 means bad credentials rather than an expired token.
func (c *Coordinator) Do(ctx context.Context, path string, opts RequestOptions) Result {
	return c.doer.Do(ctx, path, opts)
}

func (c *Coordinator) Execute(ctx context.Context, path string, opts RequestOptions) Result {
	gen := c.generation.Load()

	res := c.doer.Do(ctx, path, opts)
	if res.Kind != KindAuthExpired || opts.SkipAuth {
		return c.finish(gen, res)
	}

	if opts.retried {
		c.expire(ctx, gen, "retried call rejected")
		return c.finish(gen, expiredResult(res.Err))
	}

	if err := c.refresh(ctx, gen, res.AccessToken); err != nil {
		return c.finish(gen, Result{Kind: KindFailed, Status: http.StatusUnauthorized, Err: err})
	}

	opts.retried = true
	res = c.doer.Do(ctx, path, opts)
	if res.Kind == KindAuthExpired {
		c.expire(ctx, gen, "retried call rejected")
		return c.finish(gen, expiredResult(res.Err))
	}
	return c.finish(gen, res)
}

// Call runs path through Execute and decodes a successful body into out.
func (c *Coordinator) Call(ctx context.Context, path string, opts RequestOptions, out any) error {
	return c.Execute(ctx, path, opts).Decode(out)
}

func (c *Coordinator) Get(ctx context.Context, path string, out any) error {
	return c.Call(ctx, path, RequestOptions{Method: http.MethodGet}, out)
}

func (c *Coordinator) Send(ctx context.Context, method string, path string, body any, out any) error {
	return c.Call(ctx, path, RequestOptions{Method: method, Body: body}, out)
}

func (c *Coordinator) refresh(ctx context.Context, gen uint64, rejected string) error {
	// Someone refreshed after our request went out; just retry with their token.
	if current, ok := c.store.Read(ctx, tokenstore.KeyAccessToken); ok && current != "" && current != rejected {
		return nil
	}

	refreshToken, ok := c.store.Read(ctx, tokenstore.KeyRefreshToken)
	if !ok || refreshToken == "" {
		c.metrics.refresh("missing")
		c.expire(ctx, gen, "no refresh token")
		return model.ErrSessionExpired
	}

	_, err, shared := c.group.Do(refreshToken, func() (any, error) {
		return c.doRefresh(context.WithoutCancel(ctx), gen, refreshToken, rejected)
	})
	if shared {
		c.log.Debug("joined in-flight refresh")
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrStaleSession) {
		return err
	}

	c.expire(ctx, gen, "refresh rejected")
	return fmt.Errorf("%w: %w", model.ErrSessionExpired, err)
}

func (c *Coordinator) doRefresh(ctx context.Context, gen uint64, refreshToken string, rejected string) (string, error) {
	// A flight for this refresh token may have finished between our first
	// check and joining the group.
	if current, ok := c.store.Read(ctx, tokenstore.KeyAccessToken); ok && current != "" && current != rejected {
		return current, nil
	}

	res := c.doer.Do(ctx, PathRefresh, RequestOptions{
		Method:   http.MethodPost,
		Body:     model.RefreshRequest{RefreshToken: refreshToken},
		SkipAuth: true,
	})
	if res.Kind != KindOK {
		c.metrics.refresh("rejected")
		c.log.Warn("token refresh failed", "status", res.Status, "error", res.Err)
		return "", res.Err
	}

	var out model.RefreshResponse
	if err := json.Unmarshal(res.Body, &out); err != nil || out.AccessToken == "" {
		c.metrics.refresh("malformed")
		return "", errors.New("refresh response carried no access token")
	}

	if c.generation.Load() != gen {
		c.metrics.refresh("stale")
		return "", model.ErrStaleSession
	}
	if err := c.store.Write(ctx, tokenstore.KeyAccessToken, out.AccessToken); err != nil {
		c.metrics.refresh("store_failed")
		return "", fmt.Errorf("store refreshed token: %w", err)
	}

	c.metrics.refresh("ok")
	c.log.Info("access token refreshed")

	c.hookMu.RLock()
	hook := c.onRefreshed
	c.hookMu.RUnlock()
	if hook != nil {
		hook(ctx)
	}
	return out.AccessToken, nil
}

// expire clears all credentials and notifies the session, unless the session
// generation already moved on.
func (c *Coordinator) expire(ctx context.Context, gen uint64, reason string) {
	if !c.generation.CompareAndSwap(gen, gen+1) {
		return
	}

	if err := c.store.ClearAll(ctx); err != nil {
		c.log.Error("failed to clear credentials", "error", err)
	}
	c.metrics.expired()
	c.log.Warn("session expired", "reason", reason)

	c.hookMu.RLock()
	hook := c.onExpired
	c.hookMu.RUnlock()
	if hook != nil {
		hook(ctx)
	}
}

func (c *Coordinator) finish(gen uint64, res Result) Result {
	if res.Kind == KindOK && c.generation.Load() != gen {
		res = Result{Kind: KindFailed, Status: res.Status, Err: model.ErrStaleSession}
	}
	c.metrics.request(res.Kind)
	return res
}

func expiredResult(cause error) Result {
	err := model.ErrSessionExpired
	if cause != nil {
		err = fmt.Errorf("%w: %w", model.ErrSessionExpired, cause)
	}
	return Result{Kind: KindFailed, Status: http.StatusUnauthorized, Err: err}
}
