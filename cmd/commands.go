package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/ormlog/internal/eventlog"
	"github.com/angeloszaimis/ormlog/internal/querylog"
)

func newRecordCmd(c *cli) *cobra.Command {
	var (
		params  string
		errText string
		elapsed time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record <kind> <message>",
		Short: "Append a single event to the log file",
		Long: `Append a single event to the log file, applying the configured category filter.

Kinds: query, error, slow, schema, migration, log, info, warn.

  ormlog record query "SELECT * FROM users WHERE id = ?" --params '[42]'
  ormlog record error "SELECT 1" --error "connection reset"
  ormlog record slow "SELECT 1" --elapsed 2.5s
  ormlog record warn "pool exhausted"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, message := args[0], args[1]
			ctx := cmd.Context()

			parsed, err := parseParams(params)
			if err != nil {
				return err
			}

			switch kind {
			case "query":
				err = c.events.LogQuery(ctx, message, parsed)
			case "error":
				if errText == "" {
					return fmt.Errorf("--error is required for query errors")
				}
				err = c.events.LogQueryError(ctx, errText, message, parsed)
			case "slow":
				err = c.events.LogQuerySlow(ctx, elapsed, message, parsed)
			case "schema":
				err = c.events.LogSchemaBuild(ctx, message)
			case "migration":
				err = c.events.LogMigration(ctx, message)
			case "log", "info", "warn":
				err = c.events.Log(ctx, eventlog.Level(kind), message)
			default:
				return fmt.Errorf("unknown event kind %q", kind)
			}
			if err != nil {
				return err
			}

			c.reportMetrics()
			return nil
		},
	}

	cmd.Flags().StringVar(&params, "params", "", "query parameters as a JSON array")
	cmd.Flags().StringVar(&errText, "error", "", "error text for query errors")
	cmd.Flags().DurationVar(&elapsed, "elapsed", 0, "execution time for slow queries")

	return cmd
}

func newExecCmd(c *cli) *cobra.Command {
	var params string

	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run a SQL statement with event logging",
		Long: `Run a SQL statement against database.dsn. The statement is recorded in the
event log; failures and statements slower than database.slow_query_threshold are
recorded as well. Result rows are printed tab separated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			parsed, err := parseParams(params)
			if err != nil {
				return err
			}

			db, err := querylog.Open(ctx, c.cfg.Database.DSN, c.events, c.cfg.SlowQueryThreshold())
			if err != nil {
				return err
			}
			defer db.Close()
			defer c.reportMetrics()

			if !returnsRows(args[0]) {
				res, err := db.ExecContext(ctx, args[0], parsed...)
				if err != nil {
					return err
				}
				affected, err := res.RowsAffected()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "%d row(s) affected\n", affected)
				return nil
			}

			rows, err := db.QueryContext(ctx, args[0], parsed...)
			if err != nil {
				return err
			}
			defer rows.Close()

			return printRows(c.stdout, rows)
		},
	}

	cmd.Flags().StringVar(&params, "params", "", "statement parameters as a JSON array")

	return cmd
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Long: `Apply the goose SQL migrations found in database.migrations_dir. Migration
progress is always recorded; schema messages follow the "schema" category.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := querylog.Open(ctx, c.cfg.Database.DSN, c.events, c.cfg.SlowQueryThreshold())
			if err != nil {
				return err
			}
			defer db.Close()
			defer c.reportMetrics()

			version, err := querylog.NewMigrator(db, c.cfg.Database.MigrationsDir, nil).Up(ctx)
			if err != nil {
				return err
			}

			c.log.Info("migrations applied", slog.Int64("version", version))
			fmt.Fprintf(c.stdout, "schema version %d\n", version)
			return nil
		},
	}
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "ormlog %s\n", version)
		},
	}
}

// parseParams decodes a JSON array. An empty string means no parameters.
func parseParams(raw string) ([]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var params []any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("parsing --params: %w", err)
	}

	return params, nil
}

func returnsRows(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	default:
		return false
	}
}

func printRows(w io.Writer, rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return tw.Flush()
}
