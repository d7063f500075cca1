package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/odatad/pkg/config"
	"github.com/getmockd/odatad/pkg/logging"
	"github.com/getmockd/odatad/pkg/ratelimit"
	"github.com/getmockd/odatad/pkg/resource"
	"github.com/getmockd/odatad/pkg/seed"
	"github.com/getmockd/odatad/pkg/server"
	"github.com/getmockd/odatad/pkg/store"
)

func newServeCmd() *cobra.Command {
	f := &configFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (foreground)",
		Long: `Start the HTTP server in the foreground.

The store is seeded with the built-in dataset (3 customers, 5 orders) unless
seed files are given or seeding is disabled. The server stops gracefully on
SIGINT or SIGTERM.`,
		Example: `  # Start with defaults on :8080
  odatad serve

  # Start with a config file on a custom port
  odatad serve --config odatad.yaml --port 3000

  # Seed from files instead of the built-in dataset
  odatad serve --seed-file 'seed/**/*.yaml'

  # Cap list responses at 50 entities, log JSON at debug level
  odatad serve --max-page-size 50 --log-level debug --log-format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), f, os.LookupEnv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.ErrOrStderr())
		},
	}
	f.register(cmd.Flags())
	return cmd
}

// runServe wires the store, bridge and HTTP server for cfg and blocks until
// ctx is canceled.
func runServe(ctx context.Context, cfg *config.ServerConfiguration, logOut io.Writer) error {
	logCfg := logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: logOut,
	}
	if cfg.Log.File != "" {
		file, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer file.Close()
		logCfg.Tee = file
	}
	log := logging.New(logCfg)

	s := store.New()
	dataset, err := seedStore(s, cfg, log)
	if err != nil {
		return err
	}

	metrics := resource.NewMetricsObserver()
	bridge, err := resource.NewBridge(s,
		resource.WithObserver(resource.MultiObserver{metrics, resource.LogObserver{Log: log.With("component", "resource")}}),
		resource.WithLogger(log.With("component", "mutation")),
		resource.WithMaxPageSize(cfg.MaxPageSize),
	)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(log.With("component", "server")),
		server.WithMetrics(metrics),
		server.WithVersion(buildVersion().Version),
		server.WithReset(dataset),
	}
	if cfg.RateLimit.Enabled() {
		limiter, err := ratelimit.New(ratelimit.Config{
			Rate:           cfg.RateLimit.RequestsPerSecond,
			Burst:          cfg.RateLimit.Burst,
			TrustedProxies: cfg.RateLimit.TrustedProxies,
		})
		if err != nil {
			return fmt.Errorf("configuring rate limit: %w", err)
		}
		opts = append(opts, server.WithRateLimiter(limiter))
		log.Info("rate limiting enabled", "rps", cfg.RateLimit.RequestsPerSecond, "burst", limiter.Burst())
	}

	srv, err := server.New(ctx, bridge, cfg, opts...)
	if err != nil {
		return err
	}
	err = srv.ListenAndServe(ctx)
	log.Info("server stopped", "operations", metrics.Snapshot().Totals().Total())
	return err
}

// seedStore loads the configured dataset into s and returns it. With seeding
// disabled the dataset is empty.
func seedStore(s *store.Store, cfg *config.ServerConfiguration, log *slog.Logger) (seed.Dataset, error) {
	if cfg.Seed.Disabled {
		log.Info("seeding disabled, starting with an empty store")
		return seed.Dataset{}, nil
	}
	d, err := loadDataset(cfg)
	if err != nil {
		return seed.Dataset{}, err
	}
	applied, err := seed.Apply(s, d)
	if err != nil {
		return seed.Dataset{}, fmt.Errorf("seeding store: %w", err)
	}
	if applied {
		log.Info("store seeded", "customers", len(d.Customers), "orders", len(d.Orders))
	}
	return d, nil
}
