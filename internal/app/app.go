package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tutorhub-portal/internal/audit"
	"tutorhub-portal/internal/client"
	"tutorhub-portal/internal/config"
	"tutorhub-portal/internal/database"
	"tutorhub-portal/internal/event"
	"tutorhub-portal/internal/handler"
	"tutorhub-portal/internal/meeting"
	"tutorhub-portal/internal/middleware"
	"tutorhub-portal/internal/router"
	"tutorhub-portal/internal/service"
	"tutorhub-portal/internal/tokenstore"
	"tutorhub-portal/internal/websocket"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	cleanups := []func(){cleanupCancel}
	fail := func(err error) (*App, error) {
		runAll(cleanups)
		return nil, err
	}

	stores, db, closeStore, err := openTokenStore(cleanupCtx, cfg)
	if err != nil {
		return fail(fmt.Errorf("failed to open token store: %w", err))
	}
	cleanups = append(cleanups, closeStore)

	var auditSink audit.Sink
	if db != nil {
		auditSink = audit.NewPostgresSink(db.Pool)
	} else {
		fileSink, err := audit.NewFileSink(cfg.AuditLogFile)
		if err != nil {
			return fail(fmt.Errorf("failed to open audit log: %w", err))
		}
		auditSink = fileSink
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := client.NewMetrics(reg)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	go hub.Run()
	cleanups = append(cleanups, hub.Stop)
	go audit.NewRecorder(bus, auditSink).Run(cleanupCtx)

	tracker := meeting.NewTracker(bus, meeting.Options{Warning: cfg.MeetingWarning})
	cleanups = append(cleanups, tracker.StopAll)

	registry := service.NewRegistry(stores, bus, service.RegistryOptions{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.RequestTimeout,
		IdleTTL:  cfg.SessionIdleTTL,
		Metrics:  metrics,
		OnForget: tracker.StopScope,
	})
	go registry.StartEvictionTicker(cleanupCtx, time.Minute)

	sessions := middleware.NewSessionMiddleware(registry, cfg.SessionCookie, cfg.SessionCookieSecure)
	appRouter := router.New(cfg, sessions, router.Handlers{
		Session:  handler.NewSessionHandler(tracker),
		Proxy:    handler.NewProxyHandler(),
		Earnings: handler.NewEarningsHandler(),
		Meeting:  handler.NewMeetingHandler(tracker),
		Events:   handler.NewEventsHandler(hub, websocket.NewUpgrader(cfg.CORSOrigins), registry),
		Audit:    handler.NewAuditHandler(auditSink),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	server := &http.Server{
		Addr:              ":" + cfg.PortalPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	slog.Info("portal configured", "backend", cfg.APIBaseURL, "token_store", cfg.TokenStore)
	return &App{server: server, cleanupFuncs: cleanups}, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.Close()

	slog.Info("server stopped")
	return nil
}

// Close releases background workers and store connections.
func (a *App) Close() {
	runAll(a.cleanupFuncs)
	a.cleanupFuncs = nil
}

func runAll(funcs []func()) {
	for i := len(funcs) - 1; i >= 0; i-- {
		funcs[i]()
	}
}

// openTokenStore returns the database handle as well when TOKEN_STORE is
// postgres, so the audit trail can share the pool.
func openTokenStore(ctx context.Context, cfg *config.Config) (tokenstore.Factory, *database.DB, func(), error) {
	switch cfg.TokenStore {
	case config.StorePostgres:
		slog.Info("connecting to PostgreSQL")
		db, err := database.Open(ctx, database.Options{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		stores := tokenstore.NewPostgresFactory(db.Pool, cfg.TokenTTL)
		go stores.StartCleanupTicker(ctx, time.Hour)
		slog.Info("database ready")
		return stores, db, db.Close, nil

	case config.StoreRedis:
		slog.Info("connecting to Redis")
		rdb, err := tokenstore.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return tokenstore.NewRedisFactory(rdb, "portal", cfg.TokenTTL), nil, func() { _ = rdb.Close() }, nil
	}

	return tokenstore.NewMemoryFactory(), nil, func() {}, nil
}
