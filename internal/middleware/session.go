package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/session"
)

type sessionSource interface {
	Get(ctx context.Context, id string) *session.Manager
}

const (
	sessionContextKey contextKey = "portal_session"
	scopeContextKey   contextKey = "portal_scope"
)

// SessionMiddleware identifies the browser by a random cookie and attaches
// that browser's session manager to the request.
type SessionMiddleware struct {
	source sessionSource
	cookie string
	secure bool
}

func NewSessionMiddleware(source sessionSource, cookieName string, secure bool) *SessionMiddleware {
	return &SessionMiddleware{source: source, cookie: cookieName, secure: secure}
}

func (m *SessionMiddleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(m.cookie); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), scopeContextKey, id)
		ctx = context.WithValue(ctx, sessionContextKey, m.source.Get(ctx, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *SessionMiddleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mgr, _, ok := SessionFromContext(r.Context())
		if !ok || !mgr.IsAuthenticated() {
			writeEnvelopeError(w, http.StatusUnauthorized, "UNAUTHORIZED", model.ErrNotAuthenticated.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *SessionMiddleware) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mgr, _, ok := SessionFromContext(r.Context())
			if !ok {
				writeEnvelopeError(w, http.StatusUnauthorized, "UNAUTHORIZED", model.ErrNotAuthenticated.Error())
				return
			}
			for _, role := range roles {
				if mgr.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeEnvelopeError(w, http.StatusForbidden, "FORBIDDEN", "Access denied")
		})
	}
}

// SessionFromContext returns the visitor's manager and cookie id.
func SessionFromContext(ctx context.Context) (*session.Manager, string, bool) {
	mgr, ok := ctx.Value(sessionContextKey).(*session.Manager)
	scope, _ := ctx.Value(scopeContextKey).(string)
	return mgr, scope, ok
}

func writeEnvelopeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: code, Message: message},
	})
}
