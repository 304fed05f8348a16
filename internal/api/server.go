// Package api is the HTTP surface: a chi router over the orchestration
// service.
package api

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/scanhub/scanhub/internal/registry"
	"github.com/scanhub/scanhub/internal/service"
	"github.com/scanhub/scanhub/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router *chi.Mux
	svc    *service.Service
	logger *slog.Logger
	addr   string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, svc *service.Service, logger *slog.Logger) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		svc:    svc,
		logger: logger,
		addr:   addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/v1/system", s.handleSystemInfo)
	s.router.Get("/v1/providers", s.handleListProviders)
	s.router.Post("/v1/discover", s.handleDiscover)
	s.router.Post("/v1/output/open", s.handleOpenOutputDir)
	s.router.Get("/v1/history", s.handleHistory)
	s.router.Get("/v1/stats", s.handleStats)

	s.router.Route("/v1/devices", func(r chi.Router) {
		r.Get("/", s.handleListDevices)
		r.Post("/", s.handleAddDevice)
		r.Get("/{id}", s.handleGetDevice)
		r.Delete("/{id}", s.handleRemoveDevice)
		r.Get("/{id}/capabilities", s.handleCapabilities)
		r.Post("/{id}/reset", s.handleResetDevice)
		r.Post("/{id}/test", s.handleTestConnection)
	})

	s.router.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", s.handleCreateJob)
		r.Get("/", s.handleListJobs)
		r.Get("/{id}", s.handleGetJob)
		r.Post("/{id}/start", s.handleStartJob)
		r.Post("/{id}/cancel", s.handleCancelJob)
		r.Get("/{id}/result", s.handleGetResult)
		r.Post("/{id}/preview", s.handlePreview)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeServiceError maps orchestration errors onto HTTP statuses. Unknown
// errors are logged and reported with the fallback message only.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDeviceNotAvailable),
		errors.Is(err, service.ErrDeviceHasActiveJobs),
		errors.Is(err, service.ErrJobNotCancellable),
		errors.Is(err, service.ErrNoResult),
		errors.Is(err, store.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSystemMismatch):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(fallback, "error", err)
		s.writeError(w, http.StatusInternalServerError, fallback)
	}
}
