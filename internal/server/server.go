// Package server sets up the HTTP router and runs the server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/voicepost/internal/app"
	"github.com/sakif/voicepost/internal/auth"
	"github.com/sakif/voicepost/internal/handler"
	"github.com/sakif/voicepost/internal/middleware"
)

type Server struct {
	router *chi.Mux
	app    *app.App
	logger *slog.Logger
}

func New(a *app.App) *Server {
	s := &Server{
		router: chi.NewRouter(),
		app:    a,
		logger: a.Logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	a := s.app
	secure := strings.HasPrefix(a.Config.BaseURL, "https://")

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger, a.Metrics))

	authHandler := handler.NewAuthHandler(a.Auth, secure, s.logger)
	connectHandler := handler.NewConnectHandler(a.Connect, a.Credentials, a.Config.OAuthSuccessPath, secure, s.logger)
	savedHandler := handler.NewSavedPostHandler(a.SavedPosts, s.logger)
	scheduledHandler := handler.NewScheduledPostHandler(a.Schedule, s.logger)
	assistHandler := handler.NewAssistHandler(a.Variations, a.Transcribe, a.Share, s.logger)
	jobsHandler := handler.NewJobsHandler(a.Publisher, a.Ingester, a.Analytics, s.logger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", a.Metrics.Handler())

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		// The user id travels in the signed state, not the session cookie.
		r.Get("/{platform}/callback", connectHandler.HandleCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(a.Tokens))

		r.Get("/me", authHandler.HandleMe)

		r.Get("/connections", connectHandler.HandleList)
		r.Delete("/connections/{platform}", connectHandler.HandleDisconnect)
		r.Get("/connect/{platform}", connectHandler.HandleConnect)

		r.Get("/saved-posts", savedHandler.HandleList)
		r.Post("/saved-posts", savedHandler.HandleCreate)
		r.Get("/saved-posts/{id}", savedHandler.HandleGet)
		r.Put("/saved-posts/{id}", savedHandler.HandleUpdate)
		r.Delete("/saved-posts/{id}", savedHandler.HandleDelete)

		r.Get("/scheduled-posts", scheduledHandler.HandleList)
		r.Post("/scheduled-posts", scheduledHandler.HandleCreate)
		r.Delete("/scheduled-posts/{id}", scheduledHandler.HandleDelete)

		r.Post("/generate", assistHandler.HandleGenerate)
		r.Post("/transcribe", assistHandler.HandleTranscribe)
		r.Post("/share/email", assistHandler.HandleShareEmail)

		r.Get("/metrics", jobsHandler.HandleListMetrics)
		r.Post("/metrics/refresh", jobsHandler.HandleRefreshMetrics)
	})

	s.router.Route("/internal/cron", func(r chi.Router) {
		r.Use(handler.RequireCronSecret(a.Config.CronSecret, s.logger))
		r.Post("/publish", jobsHandler.HandleCronPublish)
		r.Post("/ingest", jobsHandler.HandleCronIngest)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DB.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Start() error {
	port := s.app.Config.Port
	// The write timeout covers transcription and generation, which wait on
	// upstream APIs.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", port),
			slog.String("url", s.app.Config.BaseURL),
			slog.String("database", s.app.Config.DBPath),
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
