// Package cli implements the command-line interface for vendorsum.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eunmann/vendorsum/internal/config"
	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/humanfmt"
	"github.com/eunmann/vendorsum/pkg/logging"
	"github.com/eunmann/vendorsum/pkg/memdiag"
	"github.com/eunmann/vendorsum/pkg/metrics"
	"github.com/eunmann/vendorsum/pkg/store"
)

const usage = "usage: vendorsum <command> [flags]\ncommands: ingest, summarize, export"

// Run executes the CLI with the given arguments. SIGINT and SIGTERM cancel
// the running command between files and chunks.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, args, os.Stderr)
}

func execute(ctx context.Context, args []string, logOut io.Writer) error {
	root := newRootCmd(logOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// app is the state shared by every command of one invocation.
type app struct {
	cfg    config.Config
	logOut io.Writer
	reg    *metrics.Registry
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	a := &app{logOut: logOut, reg: metrics.NewRegistry()}

	var (
		configPath  string
		dbPath      string
		driver      string
		logLevel    string
		logHuman    bool
		logFile     string
		metricsFile string
	)

	rootCmd := &cobra.Command{
		Use:           "vendorsum",
		Short:         "Vendor sales summary pipeline",
		Long:          "Ingests raw inventory files into a relational store, builds the vendor sales summary and exports it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return errors.New(usage)
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Apply precedence: flag > config file > default
			flags := cmd.Flags()
			if flags.Changed("db") {
				cfg.Database.Path = dbPath
			}
			if flags.Changed("driver") {
				cfg.Database.Driver = driver
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("log-human") {
				cfg.Log.Human = logHuman
			}
			if flags.Changed("log-file") {
				cfg.Log.File = logFile
			}
			if flags.Changed("metrics-file") {
				cfg.MetricsFile = metricsFile
			}

			a.cfg = cfg
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&dbPath, "db", "", "database file (default database/inventory.db)")
	pf.StringVar(&driver, "driver", "", "database driver: sqlite3, sqlite or duckdb")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&logHuman, "log-human", false, "human-friendly console logs instead of JSON")
	pf.StringVar(&logFile, "log-file", "", "append a JSON copy of the logs to this file (empty disables)")
	pf.StringVar(&metricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")

	rootCmd.AddCommand(newIngestCmd(a))
	rootCmd.AddCommand(newSummarizeCmd(a))
	rootCmd.AddCommand(newExportCmd(a))

	return rootCmd
}

// run builds the run-scoped logger, executes fn and records the run's
// duration. Metrics are written even when fn fails.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context) error) error {
	opts := a.cfg.Log
	if opts.Out == nil {
		opts.Out = a.logOut
	}
	logger, closer, err := logging.New(opts)
	if err != nil {
		return err
	}
	defer closer.Close()

	name := cmd.Name()
	ctx := logctx.WithRun(logctx.WithLogger(cmd.Context(), logger), name)
	log := logctx.FromContext(ctx)

	mem := memdiag.NewTracker(memdiag.DefaultConfig(), log)
	mem.Start()

	start := time.Now()
	runErr := fn(ctx)
	elapsed := time.Since(start)

	mem.Stop()

	a.reg.RunFinished(name, elapsed)
	if err := a.writeMetrics(); err != nil {
		log.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("failed to write metrics")
	}

	if runErr != nil {
		log.Error().
			Err(runErr).
			Str("elapsed", humanfmt.Duration(elapsed)).
			Msg("command failed")
		return runErr
	}
	log.Info().
		Str("elapsed", humanfmt.Duration(elapsed)).
		Str("heap_alloc", humanfmt.Bytes(int64(mem.Sample().HeapAlloc))).
		Msg("command completed")
	return nil
}

func (a *app) writeMetrics() error {
	if a.cfg.MetricsFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.MetricsFile), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	return a.reg.WriteTextfile(a.cfg.MetricsFile)
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if err := a.cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return store.Open(ctx, a.cfg.Database)
}
