// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/api"
	"github.com/annonymususer90/my99exch/internal/automation"
	"github.com/annonymususer90/my99exch/internal/browser"
	"github.com/annonymususer90/my99exch/internal/config"
	"github.com/annonymususer90/my99exch/internal/coordinator"
	"github.com/annonymususer90/my99exch/internal/observability"
	"github.com/annonymususer90/my99exch/internal/operations"
	"github.com/annonymususer90/my99exch/internal/outcome"
	"github.com/annonymususer90/my99exch/internal/session"
	"github.com/annonymususer90/my99exch/internal/store"
)

const shutdownTimeout = 30 * time.Second

// serveFlags maps serve flags onto configuration keys.
var serveFlags = map[string]string{
	"addr":      "server.addr",
	"headless":  "browser.headless",
	"log-level": "logger.level",
}

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and log in to the configured sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runServe(ctx, cfg, observability.GetLogger())
		},
	}

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("headless", true, "run the browser headless (overrides browser.headless)")
	serveCmd.Flags().String("log-level", "", "log level (overrides logger.level)")
	return serveCmd
}

// runServe serves until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	components, err := initializeServeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	logger.Info("Starting my99exch.",
		zap.String("version", Version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("database", cfg.Database.Driver),
		zap.Int("startup_sites", len(cfg.Sites)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return components.Server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		if len(cfg.Sites) == 0 {
			return nil
		}
		outcomes := components.Coordinator.Bootstrap(gctx, startupLogins(cfg.Sites))
		logger.Info("Startup logins finished.", zap.Int("sites", len(outcomes)))
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("my99exch stopped.")
	return nil
}

// serveComponents holds the initialized services.
type serveComponents struct {
	Store       schemas.AuditStore
	Browser     *browser.Manager
	Coordinator *coordinator.Service
	Server      *api.Server
	logger      *zap.Logger
}

// Shutdown releases every session, the browser and the audit store.
func (sc *serveComponents) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sc.Coordinator != nil {
		sc.Coordinator.Close(ctx)
	}
	if sc.Browser != nil {
		if err := sc.Browser.Shutdown(ctx); err != nil {
			sc.logger.Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	if sc.Store != nil {
		if err := sc.Store.Close(); err != nil {
			sc.logger.Warn("Error closing audit store", zap.Error(err))
		}
	}
}

// initializeServeComponents handles dependency injection. The browser is not
// launched until the first login.
func initializeServeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*serveComponents, error) {
	components := &serveComponents{logger: logger}

	auditStore, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL, cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	components.Store = auditStore

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	components.Browser = browser.NewManager(cfg.Browser, logger)

	svc, err := coordinator.New(coordinator.Dependencies{
		Registry: session.NewRegistry(cfg.Session.LoginMarker, logger, session.WithLocationTimeout(cfg.Timeouts.Action)),
		Scripts:  operations.NewScripts(cfg.ProfileTable(), cfg.Timeouts),
		Executor: automation.NewExecutor(buildClassifier(cfg.Classifier), logger),
		Handles:  components.Browser,
		Audit:    auditStore,
		Metrics:  metrics,
		Settings: coordinator.Settings{
			DefaultSecret:    cfg.Operations.DefaultSecret,
			AccountPrefix:    cfg.Operations.AccountPrefix,
			AdmissionTimeout: cfg.Session.AdmissionTimeout,
		},
		Logger: logger,
	})
	if err != nil {
		components.Shutdown()
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	components.Coordinator = svc

	components.Server = api.NewServer(cfg.Server, svc, auditStore, api.Options{Metrics: metrics, Gatherer: reg}, logger)
	return components, nil
}

// buildClassifier appends the configured phrases to the built-in registry.
func buildClassifier(cfg config.ClassifierConfig) *outcome.Registry {
	r := outcome.NewDefaultRegistry()
	r.RegisterCommon(cfg.Common...)
	for name, phrases := range cfg.Phrases {
		// Names were checked by Config.Validate.
		if op, err := schemas.ParseOperation(name); err == nil {
			r.Register(op, phrases...)
		}
	}
	return r
}

func startupLogins(sites []config.SiteConfig) []coordinator.SiteLogin {
	logins := make([]coordinator.SiteLogin, 0, len(sites))
	for _, s := range sites {
		logins = append(logins, coordinator.SiteLogin{URL: s.URL, Credentials: s.Credentials})
	}
	return logins
}
