package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIToken, when set, must accompany task creation as a bearer token.
	APIToken string
}

// Server serves the Queue and Index routes a decision task uses, on top
// of a TaskStore.
type Server struct {
	config    Config
	store     TaskStore
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	mounts    map[string]http.Handler
}

// New creates a new API server instance.
func New(config Config, store TaskStore, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		store:     store,
		logger:    logger,
		startedAt: time.Now(),
		mounts:    make(map[string]http.Handler),
	}
}

// Mount serves POST requests to path with h, e.g. a webhook receiver.
// It must be called before Start or Handler.
func (s *Server) Mount(path string, h http.Handler) {
	s.mounts[path] = h
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)
	r.Get("/api/decisions", s.handleListDecisions)

	r.Route("/api/queue/v1", func(r chi.Router) {
		r.With(s.authMiddleware).Put("/task/{taskID}", s.handleCreateTask)
		r.Get("/task/{taskID}", s.handleGetTask)
		r.Get("/task-group/{taskGroupID}/list", s.handleListTaskGroup)
	})
	r.Get("/api/index/v1/task/{namespace}", s.handleFindTask)

	for path, h := range s.mounts {
		r.Method(http.MethodPost, path, h)
	}

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
