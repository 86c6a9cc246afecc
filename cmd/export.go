// File: cmd/export.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/api"
	"github.com/annonymususer90/my99exch/internal/config"
	"github.com/annonymususer90/my99exch/internal/observability"
	"github.com/annonymususer90/my99exch/internal/reporting"
	"github.com/annonymususer90/my99exch/internal/store"
)

// storeProvider opens the audit store. Tests inject an in-memory one.
type storeProvider interface {
	Create(ctx context.Context, cfg *config.Config) (schemas.AuditStore, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider returns the provider backed by the configured database.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (schemas.AuditStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.Driver == config.DriverNone {
		return nil, nil, fmt.Errorf("no audit database is configured (%s_DATABASE_URL)", config.EnvPrefix)
	}
	s, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL, cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := s.Close(); err != nil {
			logger.Warn("Failed to close audit store.", zap.Error(err))
		}
	}
	return s, cleanup, nil
}

type exportOptions struct {
	from, to   string
	origin     string
	outputPath string
	format     string
}

func newExportCmd(provider storeProvider) *cobra.Command {
	var opts exportOptions

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the transaction audit log",
		Long: `Reads deposit and withdraw audit entries created between --from and --to
(inclusive, YYYY-MM-DD, UTC) and writes them as a spreadsheet or JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runExport(ctx, observability.GetLogger(), cfg, opts, provider)
		},
	}

	exportCmd.Flags().StringVar(&opts.from, "from", "", "first day to export, YYYY-MM-DD (required)")
	exportCmd.Flags().StringVar(&opts.to, "to", "", "last day to export, YYYY-MM-DD (required)")
	exportCmd.Flags().StringVar(&opts.origin, "origin", "", "only entries recorded for this request origin")
	exportCmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "output file; stdout when unset")
	exportCmd.Flags().StringVarP(&opts.format, "format", "f", reporting.FormatXLSX, "output format: xlsx or json")
	_ = exportCmd.MarkFlagRequired("from")
	_ = exportCmd.MarkFlagRequired("to")
	return exportCmd
}

func runExport(ctx context.Context, logger *zap.Logger, cfg *config.Config, opts exportOptions, provider storeProvider) error {
	q, err := api.ExportQuery(opts.from, opts.to, opts.origin)
	if err != nil {
		return err
	}

	auditStore, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer cleanup()

	entries, err := auditStore.Entries(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to read audit entries: %w", err)
	}

	reporter, err := reporting.New(opts.format, opts.outputPath)
	if err != nil {
		return err
	}
	if err := reporter.Write(entries); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to close export: %w", err)
	}

	logger.Info("Audit log exported.",
		zap.Int("entries", len(entries)),
		zap.String("format", opts.format),
		zap.String("output", opts.outputPath),
	)
	return nil
}
