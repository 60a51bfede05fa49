package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/ormlog/config"
	"github.com/angeloszaimis/ormlog/internal/eventlog"
	"github.com/angeloszaimis/ormlog/internal/metrics"
	"github.com/angeloszaimis/ormlog/pkg/logger"
)

// Set by ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd(config.Load, os.Stdout, os.Stderr).Execute(); err != nil {
		slog.Error("ormlog failed", slog.Any("err", err))
		os.Exit(1)
	}
}

// cli carries what every subcommand needs once configuration is loaded.
type cli struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	events  *eventlog.FileLogger
	stdout  io.Writer
}

func newRootCmd(load func() (*config.Config, error), stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout}

	var (
		logPath string
		options string
	)

	root := &cobra.Command{
		Use:   "ormlog",
		Short: "Record database access events in a log file",
		Long: `ormlog appends database access events (queries, query errors, slow queries,
schema builds, migrations and leveled messages) to a single text log file.

Which events are recorded is controlled by ormlog.options in config.yaml or the
ORMLOG_OPTIONS environment variable: "all", "true", "false" or a list of
categories (query, error, schema, log, info, warn).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("log-path") {
				cfg.EventLog.LogPath = logPath
			}
			if cmd.Flags().Changed("options") {
				cfg.EventLog.Options = options
			}

			c.cfg = cfg
			c.log = logger.New(stderr, cfg.Logging.Level, false, cfg.App.Environment)
			c.metrics = metrics.NewMetrics()
			c.events, err = newEventLogger(cfg, c.log, c.metrics)
			return err
		},
	}

	root.PersistentFlags().StringVar(&logPath, "log-path", "", "override the event log file path")
	root.PersistentFlags().StringVar(&options, "options", "", `override the recorded categories ("all", "true", "query,error", ...)`)

	root.AddCommand(
		newRecordCmd(c),
		newExecCmd(c),
		newMigrateCmd(c),
		newVersionCmd(stdout),
	)

	return root
}

func newEventLogger(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*eventlog.FileLogger, error) {
	opts, err := cfg.EventLogOptions()
	if err != nil {
		return nil, fmt.Errorf("parsing event log options: %w", err)
	}

	root := eventlog.AppRoot()
	if cfg.EventLog.Root != "" {
		root = eventlog.StaticRoot(cfg.EventLog.Root)
	}

	return eventlog.New(opts, eventlog.FileOptions{LogPath: cfg.EventLog.LogPath},
		eventlog.WithRoot(root),
		eventlog.WithDiagnostics(log),
		eventlog.WithObserver(m),
	), nil
}

func (c *cli) reportMetrics() {
	snap := c.metrics.Snapshot()
	c.log.Debug("event log metrics",
		slog.Int64("emitted", snap.TotalEmitted),
		slog.Int64("suppressed", snap.TotalSuppressed),
		slog.Int64("failures", snap.TotalFailures),
		slog.Any("kinds", snap.Kinds))
}
