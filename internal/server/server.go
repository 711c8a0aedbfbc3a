// Package server wires the application together: it builds the dependency
// chain (database → repositories → services → handlers), defines the route
// table, and owns the HTTP server lifecycle including graceful shutdown.
//
// This is the composition root — the only place where concrete types meet.
// Services receive repository interfaces, handlers receive services, and
// nothing below this package knows about routing or ports.
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
	"github.com/rs/cors"

	"github.com/sakif/testimonial-board/internal/auth"
	"github.com/sakif/testimonial-board/internal/handler"
	"github.com/sakif/testimonial-board/internal/media"
	"github.com/sakif/testimonial-board/internal/middleware"
	sqliteRepo "github.com/sakif/testimonial-board/internal/repository/sqlite"
	"github.com/sakif/testimonial-board/internal/service"
)

// Config holds everything the server needs from the environment. main.go
// populates it from env vars; tests populate it directly.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret signs session tokens. Required, minimum 16 characters.
	JWTSecret string

	// AllowedOrigins is the CORS allowlist for the browser frontend.
	// Empty means same-origin only.
	AllowedOrigins []string

	// OAuth providers. A provider with an empty client ID is not registered;
	// the credentials flow works without any of them.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// Cloudinary unsigned-upload settings. With an empty cloud name the
	// server still starts, but audio/video submissions with attachments
	// fail as an upstream error.
	CloudinaryCloudName    string
	CloudinaryUploadPreset string
}

// Server owns the router and the resources that must be released on
// shutdown (currently just the database connection pool).
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain and route table. On any error the
// database is closed before returning — the caller never owns a half-built
// server.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router for tests that drive the server with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes builds the services, handlers, middleware chain, and routes.
//
//	POST /api/register                 → create credentials account
//	POST /api/login                    → credentials sign-in
//	GET  /api/me                       → current user            (auth)
//	GET  /api/testimonials             → public paginated feed
//	POST /api/testimonials             → submit testimonial      (auth)
//	GET  /auth/{provider}/login        → start OAuth flow
//	GET  /auth/{provider}/callback     → finish OAuth flow
//	POST /auth/logout                  → clear session cookie
//	GET  /healthz                      → liveness probe
//
// Middleware order matters: RequestID first so the logger can include it,
// Recoverer last of the globals so a panic in a handler still produces a
// logged 500 instead of a dropped connection.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	var providers []*auth.Provider
	if s.config.GitHubClientID != "" {
		providers = append(providers, auth.NewGitHubProvider(
			s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL))
	}
	if s.config.GoogleClientID != "" {
		providers = append(providers, auth.NewGoogleProvider(
			s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackURL))
	}
	if len(providers) == 0 {
		s.logger.Warn("no OAuth providers configured — only credentials sign-in is available")
	}

	uploader := media.NewCloudinaryClient(s.config.CloudinaryCloudName, s.config.CloudinaryUploadPreset)

	users := s.db.Users()
	testimonials := s.db.Testimonials()

	authService := service.NewAuthService(users, tokens, auth.NewPasswordService(), s.logger)
	testimonialService := service.NewTestimonialService(testimonials, users, uploader, s.logger)

	authHandler := handler.NewAuthHandler(authService, providers, s.logger)
	testimonialHandler := handler.NewTestimonialHandler(testimonialService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(cors.New(cors.Options{
			AllowedOrigins:   s.config.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true, // the session rides in a cookie
			MaxAge:           300,
		}).Handler)
	}

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)

		// The feed is public; a signed-in visitor's identity is still
		// resolved so it shows up in request context, but never required.
		r.With(auth.OptionalAuth(tokens)).Get("/testimonials", testimonialHandler.HandleList)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/testimonials", testimonialHandler.HandleSubmit)
			r.Get("/me", authHandler.HandleMe)
		})
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/login", authHandler.HandleOAuthLogin)
		r.Get("/{provider}/callback", authHandler.HandleOAuthCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30s to
// drain, and close the database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
		// WriteTimeout has headroom for media uploads relayed to Cloudinary.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
