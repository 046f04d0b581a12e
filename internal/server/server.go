// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer, the composition root: every
// dependency is built here (or in main) and passed down explicitly.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go:   config.Load → OpenStore → server.New
//	server.New builds:
//	  github.Client (full pacing) ─┐
//	  github.Client (quick pacing) ┴→ scan.Scanner → service.PointsService → handler.PointsHandler
//	  auth.GitHubProvider + auth.TokenService → service.AuthService → handler.AuthHandler
//
// The store is opened once at startup and owned by the Server; it is closed
// after the HTTP server has drained.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/gitpoints/internal/auth"
	"github.com/sakif/gitpoints/internal/config"
	"github.com/sakif/gitpoints/internal/github"
	"github.com/sakif/gitpoints/internal/handler"
	"github.com/sakif/gitpoints/internal/keepalive"
	"github.com/sakif/gitpoints/internal/middleware"
	"github.com/sakif/gitpoints/internal/ratelimit"
	"github.com/sakif/gitpoints/internal/reporting"
	"github.com/sakif/gitpoints/internal/repository"
	"github.com/sakif/gitpoints/internal/scan"
	"github.com/sakif/gitpoints/internal/service"
)

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	store     repository.Store
	keepalive *keepalive.Pinger

	flushReports func()
	stopLimiter  func()
}

// New wires every layer on top of store. The Server takes ownership of
// store and closes it when Start returns.
func New(cfg config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	sentryMiddleware, flush, err := reporting.Init(cfg.SentryDSN, string(cfg.Env))
	if err != nil {
		return nil, fmt.Errorf("initialising error reporting: %w", err)
	}

	limiter, stopLimiter := ratelimit.NewTokenBucket(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)

	s := &Server{
		router:       chi.NewRouter(),
		config:       cfg,
		logger:       logger,
		store:        store,
		keepalive:    keepalive.New(cfg.Keepalive.URL, cfg.Keepalive.Interval, nil, logger),
		flushReports: flush,
		stopLimiter:  stopLimiter,
	}

	if err := s.setupRoutes(sentryMiddleware, limiter); err != nil {
		stopLimiter()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /                          → health probe
//	GET  /auth/{provider}           → start OAuth (github only)
//	GET  /auth/{provider}/callback  → finish OAuth, redirect to frontend
//	POST /auth/logout               → clear session cookie
//	GET  /api/points/{username}     → full scan, saved
//	GET  /api/quick-scan/{username} → quick scan, not saved
//	POST /api/checkin/{username}    → +1 point
//	GET  /api/leaderboard           → users by points
//	GET  /api/debug/user/{username} → raw record (opt-in, own record only)
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: tags the request for the access log
//  2. RealIP: rewrites RemoteAddr from proxy headers (rate limit keys use it)
//  3. Logger: one line per request
//  4. Recoverer: turns panics into 500s; sits outside Sentry so the
//     re-panic after capture still ends here
//  5. Sentry: hub per request for reporting.Report
func (s *Server) setupRoutes(sentryMiddleware reporting.Middleware, limiter ratelimit.Limiter) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(sentryMiddleware)

	s.router.Get("/", handler.HandleHealth)

	// === GitHub clients ===
	// One client per pacing: the quick scan pages with a shorter pause.
	full, err := github.NewClient(github.Options{
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		BaseURL:       s.config.GitHub.APIURL,
		FallbackToken: s.config.GitHub.FallbackToken,
		PageSize:      s.config.Scan.PageSize,
		PageThrottle:  github.NewThrottle(s.config.Scan.PageDelay),
	}, s.logger)
	if err != nil {
		return fmt.Errorf("creating GitHub client: %w", err)
	}
	quick := full.WithPageThrottle(github.NewThrottle(s.config.Scan.QuickPageDelay))

	scanner := scan.NewScanner(full, quick, scan.Config{
		RepoDelay:       s.config.Scan.RepoDelay,
		QuickEventPages: s.config.Scan.QuickEventPages,
	}, s.logger)

	// === Services ===
	tokens, err := auth.NewTokenService(s.config.SessionSecret)
	if err != nil {
		return err
	}
	provider, err := auth.NewGitHubProvider(auth.ProviderConfig{
		ClientID:     s.config.OAuth.ClientID,
		ClientSecret: s.config.OAuth.ClientSecret,
		CallbackURL:  s.config.OAuth.CallbackURL,
		APIBaseURL:   s.config.GitHub.APIURL,
	})
	if err != nil {
		return err
	}

	pointsService := service.NewPointsService(s.store, scanner, s.config.Scan.Timeout, s.logger)
	authService := service.NewAuthService(s.store, tokens, s.logger)

	// === Handlers ===
	pointsHandler := handler.NewPointsHandler(pointsService, s.logger)
	authHandler := handler.NewAuthHandler(provider, authService, handler.AuthConfig{
		SuccessURL:    s.config.Frontend.SuccessURL,
		FailureURL:    s.config.Frontend.FailureURL,
		SessionTTL:    tokens.TTL(),
		SecureCookies: s.config.IsProduction(),
	}, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/{provider}", authHandler.HandleLogin)
		r.Get("/{provider}/callback", authHandler.HandleCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, ratelimit.IPKey, s.logger))

		r.Get("/points/{username}", pointsHandler.HandlePoints)
		r.Get("/quick-scan/{username}", pointsHandler.HandleQuickScan)
		r.Post("/checkin/{username}", pointsHandler.HandleCheckIn)
		r.Get("/leaderboard", pointsHandler.HandleLeaderboard)

		if s.config.DebugEndpointEnabled {
			r.With(auth.RequireAuth(tokens)).Get("/debug/user/{username}", pointsHandler.HandleDebugUser)
			s.logger.Warn("debug endpoint enabled: /api/debug/user/{username} exposes stored access tokens to their owners")
		}
	})

	return nil
}

// Start runs the HTTP server until ctx is cancelled or SIGINT/SIGTERM
// arrives, then shuts down gracefully:
//  1. Stop accepting connections and wait for in-flight requests
//  2. Stop the keepalive ticker and the rate limiter's eviction loop
//  3. Flush pending Sentry events
//  4. Close the store
func (s *Server) Start(ctx context.Context) error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()
	defer s.flushReports()
	defer s.stopLimiter()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTP.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.HTTP.ReadTimeout,
		WriteTimeout: s.config.HTTP.WriteTimeout,
		IdleTimeout:  s.config.HTTP.IdleTimeout,
	}

	// Started once, here, for the life of the process.
	s.keepalive.Start(ctx)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.HTTP.Port),
			slog.String("config", s.config.NonSensitiveString()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.HTTP.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
