// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/congdinh/todo-backend/internal/config"
	"github.com/congdinh/todo-backend/internal/domain"
	"github.com/congdinh/todo-backend/internal/identity"
	"github.com/congdinh/todo-backend/internal/identity/jwt"
	identitypostgres "github.com/congdinh/todo-backend/internal/identity/postgres"
	"github.com/congdinh/todo-backend/internal/mailer"
	"github.com/congdinh/todo-backend/internal/mailer/email"
	mailerpostgres "github.com/congdinh/todo-backend/internal/mailer/postgres"
	"github.com/congdinh/todo-backend/internal/pkg/ctxlog"
	"github.com/congdinh/todo-backend/internal/pkg/httputil"
	"github.com/congdinh/todo-backend/internal/pkg/metrics"
	"github.com/congdinh/todo-backend/internal/pkg/postgres"
	"github.com/congdinh/todo-backend/internal/todos"
	todospostgres "github.com/congdinh/todo-backend/internal/todos/postgres"
	"github.com/congdinh/todo-backend/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	mailWorker    *mailer.Worker
	scheduler     *mailer.Scheduler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop background mail processing first
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.mailWorker != nil {
		a.mailWorker.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// cleanupExpiredTokens sweeps refresh tokens past their expiry. Rotation
// already consumes tokens on use; the sweep catches abandoned sessions.
func (a *App) cleanupExpiredTokens(ctx context.Context, repo *identitypostgres.Repository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := repo.DeleteExpiredRefreshTokens(ctx)
			if err != nil {
				a.logger.Error("failed to delete expired refresh tokens", "error", err)
				continue
			}
			if deleted > 0 {
				a.logger.Info("deleted expired refresh tokens", "count", deleted)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, repo mailer.Repository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.GetQueueStats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			mailer.RecordQueueStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// MailWorker returns the mail worker instance.
// Used in tests to access worker state. Returns nil if the mailer is disabled.
func (a *App) MailWorker() *mailer.Worker {
	return a.mailWorker
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Todo Backend API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	identityRepo := identitypostgres.NewRepository(a.db)
	todosRepo := todospostgres.NewRepository(a.db)

	go a.cleanupExpiredTokens(ctx, identityRepo)

	todosService := todos.NewService(todosRepo)
	todosHandler := todos.NewHandler(todosService)

	// Setup the mailer first (needed for the identity hook)
	mailRepo := mailerpostgres.NewRepository(a.db)
	var mailService *mailer.Service

	slog.Info("mailer configured",
		"enabled", a.config.Mailer.Enabled,
		"email_enabled", a.config.Mailer.Email.Enabled,
	)

	if a.config.Mailer.Enabled {
		mailService = mailer.NewService(mailRepo, todosRepo, identityRepo, a.config.Mailer.Retry.MaxAttempts)

		emailSender, err := email.NewSender(email.Config{
			Enabled:       a.config.Mailer.Email.Enabled,
			SMTPHost:      a.config.Mailer.Email.SMTPHost,
			SMTPPort:      a.config.Mailer.Email.SMTPPort,
			SMTPUser:      a.config.Mailer.Email.SMTPUser,
			SMTPPassword:  a.config.Mailer.Email.SMTPPassword,
			FromAddress:   a.config.Mailer.Email.FromAddress,
			RatePerSecond: a.config.Mailer.Email.RatePerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("create email sender: %w", err)
		}

		if !a.config.Mailer.Email.Enabled {
			slog.Warn("email sender is disabled: welcome emails and reminders will not be sent")
		}

		renderer, err := mailer.NewRenderer()
		if err != nil {
			return nil, fmt.Errorf("create mail renderer: %w", err)
		}

		workerConfig := mailer.WorkerConfig{
			BatchSize:         a.config.Mailer.Worker.BatchSize,
			PollInterval:      a.config.Mailer.Worker.PollInterval,
			MaxAttempts:       a.config.Mailer.Retry.MaxAttempts,
			InitialBackoff:    a.config.Mailer.Retry.InitialBackoff,
			MaxBackoff:        a.config.Mailer.Retry.MaxBackoff,
			BackoffMultiplier: a.config.Mailer.Retry.BackoffMultiplier,
			NumWorkers:        a.config.Mailer.Worker.NumWorkers,
		}

		a.mailWorker = mailer.NewWorker(workerConfig, mailRepo, emailSender, renderer)
		a.mailWorker.Start(ctx)

		a.scheduler = mailer.NewScheduler(mailService, a.config.Mailer.Reminders.ScanInterval)
		a.scheduler.Start(ctx)

		// Start queue metrics collection
		go a.collectQueueMetrics(ctx, mailRepo)
	}

	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:            a.config.JWT.SecretKey,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	}, identityRepo)

	var userCreatedHandler identity.UserCreatedHandler
	if mailService != nil {
		userCreatedHandler = mailService
	}
	identityService := identity.NewService(identityRepo, jwtAuth, userCreatedHandler)
	identityHandler := identity.NewHandler(identityService)

	if a.config.Admin.Email != "" {
		seedCtx, seedCancel := context.WithTimeout(ctx, 10*time.Second)
		defer seedCancel()
		if err := identityService.EnsureAdmin(seedCtx, a.config.Admin.Email, a.config.Admin.Password, a.config.Admin.DisplayName); err != nil {
			return nil, fmt.Errorf("seed admin account: %w", err)
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))

			identityHandler.RegisterProtectedRoutes(r)
			todosHandler.RegisterProtectedRoutes(r)

			r.Route("/admin", func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleAdmin))
				identityHandler.RegisterAdminRoutes(r)
				todosHandler.RegisterAdminRoutes(r)
			})
		})
	})

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
