// Package api is the HTTP boundary of the coordinator: it decodes requests,
// hands them to the coordinator and maps outcomes onto status codes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/config"
	"github.com/annonymususer90/my99exch/internal/coordinator"
	"github.com/annonymususer90/my99exch/internal/observability"
)

// Coordinator is the part of the coordinator service the boundary drives.
type Coordinator interface {
	Login(ctx context.Context, site string, creds schemas.Credentials) schemas.Outcome
	Register(ctx context.Context, req schemas.Request) coordinator.Result
	ResetPassword(ctx context.Context, req schemas.Request) coordinator.Result
	LockUser(ctx context.Context, req schemas.Request) coordinator.Result
	Deposit(ctx context.Context, req schemas.Request) coordinator.Result
	Withdraw(ctx context.Context, req schemas.Request) coordinator.Result
	Sites() []string
}

// Server serves the HTTP API.
type Server struct {
	cfg      config.ServerConfig
	coord    Coordinator
	audit    schemas.AuditReader
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	router   chi.Router
}

// Options are the optional collaborators of a Server.
type Options struct {
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
}

// NewServer builds the router. audit serves the spreadsheet export.
func NewServer(cfg config.ServerConfig, coord Coordinator, audit schemas.AuditReader, opts Options, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		coord:    coord,
		audit:    audit,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		logger:   logger.Named("api"),
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)
	r.Post("/resetpass", s.handleResetPassword)
	r.Post("/lockuser", s.handleLockUser)
	r.Post("/deposit", s.handleDeposit)
	r.Post("/withdraw", s.handleWithdraw)
	r.Post("/generate-excel", s.handleGenerateExcel)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening.", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
