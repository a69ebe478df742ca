// Package client talks to the tutoring REST backend.
//
// Client issues exactly one HTTP request and reports the outcome as a Result.
// Coordinator layers the refresh-once-then-retry-once policy on top and is
// what the rest of the portal calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/tokenstore"
	"tutorhub-portal/pkg/apierror"
)

const (
	PathLogin     = "/auth/login/"
	PathLogout    = "/auth/logout/"
	PathRefresh   = "/auth/token/refresh/"
	PathCheckAuth = "/auth/check-auth/"

	maxBodyBytes = 10 << 20
)

type Kind int

const (
	KindOK Kind = iota
	KindAuthExpired
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindAuthExpired:
		return "auth_expired"
	default:
		return "failed"
	}
}

// Result is the outcome of one request. Err is set for every kind but
// KindOK. Body holds the response body, including the backend's error body
// when it sent one. AccessToken is the bearer token the request carried.
type Result struct {
	Kind        Kind
	Status      int
	Body        json.RawMessage
	Err         error
	AccessToken string
}

func (r Result) Decode(out any) error {
	if r.Err != nil {
		return r.Err
	}
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type RequestOptions struct {
	Method   string
	Body     any
	Headers  map[string]string
	SkipAuth bool

	retried bool
}

// Doer performs a single request.
type Doer interface {
	Do(ctx context.Context, path string, opts RequestOptions) Result
}

type Client struct {
	baseURL string
	http    *http.Client
	store   tokenstore.Store
	log     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   store,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "client")
	return c
}

func (c *Client) Store() tokenstore.Store {
	return c.store
}

func (c *Client) Do(ctx context.Context, path string, opts RequestOptions) Result {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return Result{Kind: KindFailed, Err: fmt.Errorf("encode request body: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return Result{Kind: KindFailed, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	var token string
	if !opts.SkipAuth {
		if stored, ok := c.store.Read(ctx, tokenstore.KeyAccessToken); ok && stored != "" {
			token = stored
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Kind: KindFailed, Err: ctxErr, AccessToken: token}
		}
		c.log.Warn("request failed", "method", method, "path", path, "error", err)
		return Result{Kind: KindFailed, Err: fmt.Errorf("%w: %w", model.ErrNetwork, err), AccessToken: token}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{Kind: KindFailed, Status: resp.StatusCode, Err: fmt.Errorf("%w: %w", model.ErrNetwork, err), AccessToken: token}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.invalidate(ctx, token)
		return Result{
			Kind:        KindAuthExpired,
			Status:      resp.StatusCode,
			Err:         apierror.FromStatus(resp.StatusCode, errorMessage(raw)),
			AccessToken: token,
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		apiErr := apierror.FromStatus(resp.StatusCode, errorMessage(raw))
		c.log.Debug("request rejected", "method", method, "path", path, "status", resp.StatusCode, "message", apiErr.Message)
		return Result{Kind: KindFailed, Status: resp.StatusCode, Body: errorBody(raw), Err: apiErr, AccessToken: token}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("null")
	}
	return Result{Kind: KindOK, Status: resp.StatusCode, Body: raw, AccessToken: token}
}

// invalidate drops the access token that was just rejected. A token written
// since the request went out (another caller refreshed) is left alone.
func (c *Client) invalidate(ctx context.Context, rejected string) {
	if rejected == "" {
		return
	}
	if _, err := c.store.DeleteIf(ctx, tokenstore.KeyAccessToken, rejected); err != nil {
		c.log.Warn("failed to drop rejected access token", "error", err)
	}
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func errorBody(raw []byte) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return raw
}

// errorMessage pulls the server's message out of an error body. It accepts
// {"error": "..."}, {"detail": "..."} and {"error": {"message": "..."}}.
func errorMessage(raw []byte) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}

	for _, key := range []string{"error", "detail", "message"} {
		field, ok := body[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(field, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(field, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return ""
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *apierror.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatus == status
}
