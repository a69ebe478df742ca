// Package devapi is an in-memory stand-in for the TutorHub REST backend. It
// speaks the same wire contract as the real API so the portal and tutorctl
// can be run and tested without it.
package devapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"tutorhub-portal/internal/middleware"
	"tutorhub-portal/internal/model"
)

const (
	DefaultPassword      = "password123"
	DefaultMaxExtensions = 2
)

type Options struct {
	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Password      string
	BcryptCost    int
	MaxExtensions int
	Accounts      []SeedAccount
}

type Server struct {
	data          *data
	auth          *AuthService
	maxExtensions int
	now           func() time.Time
}

func New(opts Options) (*Server, error) {
	if opts.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.MaxExtensions <= 0 {
		opts.MaxExtensions = DefaultMaxExtensions
	}
	if opts.Accounts == nil {
		opts.Accounts = DefaultAccounts()
	}

	d := newData()
	if err := d.seed(opts.Accounts, opts.Password, opts.BcryptCost); err != nil {
		return nil, err
	}

	return &Server{
		data:          d,
		auth:          newAuthService(d, opts.JWTSecret, opts.AccessTTL, opts.RefreshTTL),
		maxExtensions: opts.MaxExtensions,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Server) Auth() *AuthService {
	return s.auth
}

// Handler mounts the whole API under /api, trailing slashes included.
func (s *Server) Handler() http.Handler {
	authMW := middleware.NewAuthMiddleware(s.auth)
	staffOnly := authMW.RequireRoles(model.UserTypeAdmin, model.UserTypeManager, model.UserTypeStaff)
	adminOnly := authMW.RequireRoles(model.UserTypeAdmin, model.UserTypeManager)

	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login/", s.login)
			auth.Post("/logout/", s.logout)
			auth.Post("/token/refresh/", s.refresh)

			auth.Group(func(protected chi.Router) {
				protected.Use(authMW.RequireAuth)
				protected.Get("/check-auth/", s.checkAuth)
				protected.Get("/me/", s.me)
			})
		})

		api.Group(func(protected chi.Router) {
			protected.Use(authMW.RequireAuth)

			protected.Get("/gigs/", s.listGigs)
			protected.Post("/gigs/", s.createGig)
			protected.Get("/gigs/{id}/", s.getGig)
			protected.Put("/gigs/{id}/", s.updateGig)
			protected.Delete("/gigs/{id}/", s.deleteGig)

			protected.Get("/sessions/", s.listSessions)
			protected.Post("/sessions/", s.createSession)
			protected.With(staffOnly).Post("/sessions/{id}/verify/", s.verifySession)
			protected.Get("/sessions/{id}/meeting/", s.meeting)
			protected.Post("/sessions/{id}/extend/", s.extendMeeting)

			protected.Get("/tutors/", s.listTutors)
			protected.Get("/tutors/{id}/", s.getTutor)

			protected.Route("/admin/users", func(admin chi.Router) {
				admin.Use(adminOnly)
				admin.Get("/", s.listUsers)
				admin.Post("/{id}/approve/", s.approveUser)
				admin.Patch("/{id}/", s.patchUser)
			})
		})

		// Lets a developer force the client down its refresh path by hand.
		api.Post("/dev/revoke-access/", func(w http.ResponseWriter, _ *http.Request) {
			s.auth.RevokeAccessTokens()
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}
