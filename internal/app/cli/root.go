package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"consenthub/internal/app/server"
	"consenthub/internal/platform/config"
	"consenthub/internal/platform/db"
	"consenthub/internal/platform/logger"
)

var version = "dev"

type options struct {
	logLevel string
}

// NewRootCommand returns the consenthub command tree. Running it without a
// subcommand starts the HTTP server.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "consenthub",
		Short:         "Consent, privacy notice and DSAR management service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and background jobs",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMaintenance(cmd.Context(), opts, false)
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Apply migrations, seed roles, admin user and preference taxonomy, then exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMaintenance(cmd.Context(), opts, true)
			},
		},
	)
	return root
}

// Execute runs the root command with SIGINT and SIGTERM cancelling its context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "consenthub:", err)
		return 1
	}
	return 0
}

func setup(opts *options) (config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, err
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

func runServe(ctx context.Context, opts *options) error {
	cfg, log, err := setup(opts)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := server.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	return app.Run(ctx)
}

func runMaintenance(ctx context.Context, opts *options, seed bool) error {
	cfg, log, err := setup(opts)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied", zap.String("dir", cfg.MigrationsDir))
	if !seed {
		return nil
	}
	if err := db.Seed(ctx, pool, cfg); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Info("seed complete")
	return nil
}
