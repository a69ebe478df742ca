package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorhub-portal/internal/config"
	"tutorhub-portal/internal/handler"
	"tutorhub-portal/internal/middleware"
	"tutorhub-portal/internal/model"
)

type Handlers struct {
	Session  *handler.SessionHandler
	Proxy    *handler.ProxyHandler
	Earnings *handler.EarningsHandler
	Meeting  *handler.MeetingHandler
	Events   *handler.EventsHandler
	Audit    *handler.AuditHandler
	Metrics  http.Handler
}

const loginPath = "/portal/session/login"

func New(cfg *config.Config, sessions *middleware.SessionMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, loginPath).
		Exempt("/health", "/metrics", "/portal/events")

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/portal", func(portal chi.Router) {
		portal.Use(sessions.Attach)

		// Websockets hijack the connection, which http.TimeoutHandler forbids.
		portal.Get("/events", h.Events.Stream)

		portal.Group(func(api chi.Router) {
			// Room for the call, a token refresh and the retry.
			api.Use(middleware.Timeout(3 * cfg.RequestTimeout))

			api.Get("/session", h.Session.Get)
			api.Post("/session/login", h.Session.Login)
			api.Post("/session/logout", h.Session.Logout)

			api.Group(func(authed chi.Router) {
				authed.Use(sessions.RequireLogin)

				authed.Get("/earnings", h.Earnings.Summary)
				authed.Post("/meetings/{sessionID}/start", h.Meeting.Start)
				authed.Get("/meetings/{sessionID}", h.Meeting.Status)
				authed.Post("/meetings/{sessionID}/extend", h.Meeting.Extend)
				authed.HandleFunc("/api/*", h.Proxy.Forward)
				authed.With(sessions.RequireRoles(model.UserTypeAdmin, model.UserTypeManager)).
					Get("/audit", h.Audit.List)
			})
		})
	})

	return r
}
