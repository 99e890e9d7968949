// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "start the server")
//
// DEPENDENCY INJECTION FLOW:
// main.go creates: config + logger + generator → passed to Server
// Server.New() creates: sqlite.DB → services → handlers → routes
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/nutrilog/internal/auth"
	"github.com/sakif/nutrilog/internal/clipper"
	"github.com/sakif/nutrilog/internal/config"
	"github.com/sakif/nutrilog/internal/generator"
	"github.com/sakif/nutrilog/internal/handler"
	"github.com/sakif/nutrilog/internal/middleware"
	sqliteRepo "github.com/sakif/nutrilog/internal/repository/sqlite"
	"github.com/sakif/nutrilog/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection, the generator client, and the
// draft service's background workers. All three hold resources that must
// be released on shutdown, which Start() handles after the HTTP listener
// has drained.
type Server struct {
	router *chi.Mux
	config *config.Server
	logger *slog.Logger
	db     *sqliteRepo.DB
	gen    generator.Generator
	drafts *service.DraftService
}

// New creates a new Server with the given config and generator.
//
// DEPENDENCY INJECTION & WIRING:
// This is where the entire dependency chain is assembled:
//  1. Create the database connection (sqlite.New)
//  2. Create the service layer with the per-entity repositories
//  3. Create the handlers with the services
//  4. Wire handlers to routes
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlite.DB)
// - Handlers get services (not repositories or the DB)
//
// The generator is injected rather than constructed here so main.go can
// pick Gemini, OpenAI, or the mock from config without this package
// knowing the difference.
func New(cfg *config.Server, gen generator.Generator, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		gen:    gen,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /auth/register                           → create an account
// POST   /auth/login                              → password login, returns JWT
// GET    /auth/google/login                       → start Google OAuth
// GET    /auth/google/callback                    → finish Google OAuth
// GET    /api/me                                  → current user profile
// PUT    /api/me/targets                          → update nutrition targets
// POST   /api/drafts                              → create a draft (202)
// GET    /api/drafts                              → list drafts
// GET    /api/drafts/{id}                         → poll one draft
// POST   /api/drafts/{id}/save                    → promote draft to meal
// DELETE /api/drafts/{id}                         → discard draft
// POST   /api/drafts/{id}/components              → add a component (202)
// DELETE /api/drafts/{id}/components/{componentId} → remove a component
// GET    /api/meals                               → list saved meals
// GET    /api/meals/{id}                          → one saved meal
// DELETE /api/meals/{id}                          → delete a saved meal
// GET    /api/summary/daily                       → one day vs targets
// GET    /api/summary/weekly                      → Monday-to-Sunday week
// GET    /api/account/streak                      → consecutive logging days
//
// Everything under /api requires a bearer token; /auth is public.
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500

	// Our custom logging middleware
	s.router.Use(middleware.Logger(s.logger))

	// === Auth plumbing ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.GoogleCallbackURL,
	)

	// === Services ===
	authService := service.NewAuthService(s.db.Users(), tokens, auth.NewPasswordService(), s.logger)
	s.drafts = service.NewDraftService(s.db.Drafts(), s.gen, clipper.New(), s.config.GenerateWorkers, s.logger)
	mealService := service.NewMealService(s.db.Meals(), s.db.Users(), s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(google, authService, s.logger)
	draftHandler := handler.NewDraftHandler(s.drafts, s.logger)
	mealHandler := handler.NewMealHandler(mealService, s.logger)

	// === Public routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
	})

	// === Authenticated API ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me", authHandler.HandleMe)
		r.Put("/me/targets", authHandler.HandleUpdateTargets)

		r.Post("/drafts", draftHandler.HandleCreate)
		r.Get("/drafts", draftHandler.HandleList)
		r.Get("/drafts/{id}", draftHandler.HandleGet)
		r.Post("/drafts/{id}/save", draftHandler.HandleSave)
		r.Delete("/drafts/{id}", draftHandler.HandleDiscard)
		r.Post("/drafts/{id}/components", draftHandler.HandleAddComponent)
		r.Delete("/drafts/{id}/components/{componentId}", draftHandler.HandleRemoveComponent)

		r.Get("/meals", mealHandler.HandleList)
		r.Get("/meals/{id}", mealHandler.HandleGet)
		r.Delete("/meals/{id}", mealHandler.HandleDelete)

		r.Get("/summary/daily", mealHandler.HandleDailySummary)
		r.Get("/summary/weekly", mealHandler.HandleWeeklySummary)
		r.Get("/account/streak", mealHandler.HandleStreak)
	})

	return nil
}

// Router exposes the configured handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the draft workers (pending generations are abandoned; the
//    affected drafts stay pending and can be discarded by the user)
// 4. Close the generator client and the database connection
//
// If step 4 is skipped, the database file might be left in an inconsistent
// state. The defers ensure it happens even if something panics.
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.gen.Close()
	defer s.drafts.Close()

	// Create the HTTP server with sensible timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		// Server failed to start
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		// Received shutdown signal
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
