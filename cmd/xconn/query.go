package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-mizu/xconn"
	"github.com/go-mizu/xconn/sqldrv"
	"github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
	"xorkevin.dev/kerrors"
)

type (
	queryFlags struct {
		driver          string
		dsn             string
		poolEnabled     bool
		poolMaxSize     int
		poolIdleTimeout time.Duration
		separator       string
		lowercase       bool
		repeat          int
		format          string
		params          []string
	}

	queryConfig struct {
		Driver           string
		DSN              string
		PoolEnabled      bool
		PoolMaxSize      int
		PoolIdleTimeout  time.Duration
		DecimalSeparator string
		Lowercase        bool
		Repeat           int
		Format           string
		Named            map[string]any
	}
)

const (
	formatTuple = "tuple"
	formatYAML  = "yaml"
)

func (c *Cmd) getQueryCmd() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query SQL [ARG...]",
		Short: "Run a query and print its rows",
		Long: `Run a query and print its rows.

The query runs repeat times, each through a fresh Connect and Close, so that
pooled connection reuse shows in the logs. Rows of the final run are printed.`,
		Args:              cobra.MinimumNArgs(1),
		RunE:              c.execQuery,
		DisableAutoGenTag: true,
	}
	f := queryCmd.Flags()
	f.StringVar(&c.queryFlags.driver, "driver", "sqlite3", "database/sql driver name (sqlite3, mysql)")
	f.StringVar(&c.queryFlags.dsn, "dsn", "", "connection string, also the pool key")
	f.BoolVar(&c.queryFlags.poolEnabled, "pool", true, "pool connections between runs")
	f.IntVar(&c.queryFlags.poolMaxSize, "pool-max-size", xconn.DefaultMaxSize, "max idle connections per connection string")
	f.DurationVar(&c.queryFlags.poolIdleTimeout, "pool-idle-timeout", xconn.DefaultIdleTimeout, "max idle time before a pooled connection is discarded")
	f.StringVar(&c.queryFlags.separator, "decimal-separator", ".", "decimal separator used when printing rows")
	f.BoolVar(&c.queryFlags.lowercase, "lowercase", false, "resolve column names case-insensitively")
	f.IntVar(&c.queryFlags.repeat, "repeat", 1, "number of times to run the query")
	f.StringVar(&c.queryFlags.format, "format", formatTuple, "output format (tuple, yaml)")
	f.StringArrayVarP(&c.queryFlags.params, "param", "p", nil, "named parameter as name=value, bound to :name (repeatable)")

	for key, name := range map[string]string{
		"driver":            "driver",
		"dsn":               "dsn",
		"pool.enabled":      "pool",
		"pool.max_size":     "pool-max-size",
		"pool.idle_timeout": "pool-idle-timeout",
		"decimal_separator": "decimal-separator",
		"lowercase":         "lowercase",
		"repeat":            "repeat",
		"format":            "format",
	} {
		_ = c.v.BindPFlag(key, f.Lookup(name))
	}
	return queryCmd
}

func (c *Cmd) execQuery(cmd *cobra.Command, args []string) error {
	cfg, err := c.readQueryConfig()
	if err != nil {
		return err
	}
	if len(c.queryFlags.params) > 0 {
		if len(args) > 1 {
			return kerrors.WithKind(nil, xconn.ErrInvalidConfig, "Named and positional parameters cannot be mixed")
		}
		cfg.Named, err = parseNamed(c.queryFlags.params)
		if err != nil {
			return err
		}
	}
	params := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		params = append(params, a)
	}
	return runQuery(cmd.Context(), c.log, cmd.OutOrStdout(), cfg, args[0], params)
}

func (c *Cmd) readQueryConfig() (queryConfig, error) {
	cfg := queryConfig{
		Driver:           c.v.GetString("driver"),
		DSN:              c.v.GetString("dsn"),
		PoolEnabled:      c.v.GetBool("pool.enabled"),
		PoolMaxSize:      c.v.GetInt("pool.max_size"),
		PoolIdleTimeout:  c.v.GetDuration("pool.idle_timeout"),
		DecimalSeparator: c.v.GetString("decimal_separator"),
		Lowercase:        c.v.GetBool("lowercase"),
		Repeat:           c.v.GetInt("repeat"),
		Format:           c.v.GetString("format"),
	}
	if err := cfg.validate(); err != nil {
		return queryConfig{}, err
	}
	return cfg, nil
}

func (cfg queryConfig) validate() error {
	if cfg.Driver == "" {
		return kerrors.WithKind(nil, xconn.ErrInvalidConfig, "Driver must be set")
	}
	if cfg.DSN == "" {
		return kerrors.WithKind(nil, xconn.ErrInvalidConfig, "DSN must be set")
	}
	if cfg.Repeat < 1 {
		return kerrors.WithKind(nil, xconn.ErrInvalidConfig, "Repeat must be at least 1")
	}
	switch cfg.Format {
	case formatTuple, formatYAML:
	default:
		return kerrors.WithKind(nil, xconn.ErrInvalidConfig, "Unknown output format "+cfg.Format)
	}
	return nil
}

func runQuery(ctx context.Context, log *slog.Logger, w io.Writer, cfg queryConfig, query string, params []any) error {
	if err := xconn.SetDecimalSeparator(cfg.DecimalSeparator); err != nil {
		return err
	}

	pool := xconn.NewPool(xconn.WithLogger(log))
	if cfg.PoolEnabled {
		if err := pool.Enable(cfg.PoolMaxSize, cfg.PoolIdleTimeout); err != nil {
			return err
		}
		defer pool.Disable()
	}

	drv := sqldrv.New(cfg.Driver, sqldrv.WithLogger(log))
	log = log.With(
		slog.String("driver", cfg.Driver),
		slog.String("dsn", redactDSN(cfg.Driver, cfg.DSN)),
	)

	var rows []*xconn.Row
	for i := 0; i < cfg.Repeat; i++ {
		start := time.Now()
		var err error
		rows, err = queryOnce(ctx, drv, pool, log, cfg, query, params)
		if err != nil {
			return kerrors.WithMsg(err, "Query failed")
		}
		log.Info("Query finished",
			slog.Int("run", i+1),
			slog.Int("rows", len(rows)),
			slog.Duration("elapsed", time.Since(start)),
			slog.Int("pooled", pool.Len(cfg.DSN)),
		)
	}
	return writeRows(w, cfg.Format, rows)
}

func queryOnce(ctx context.Context, drv xconn.Driver, pool *xconn.Pool, log *slog.Logger, cfg queryConfig, query string, params []any) (out []*xconn.Row, err error) {
	conn, err := xconn.Connect(ctx, drv, cfg.DSN, xconn.UsePool(pool), xconn.UseLogger(log))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cur, err := conn.Cursor(xconn.Lowercase(cfg.Lowercase))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if cfg.Named != nil {
		var opts []xconn.BindOption
		if cfg.Driver == "mysql" {
			opts = append(opts, xconn.BackslashEscapes())
		}
		err = cur.ExecuteNamed(ctx, query, cfg.Named, opts...)
	} else {
		err = cur.Execute(ctx, query, params...)
	}
	if err != nil {
		return nil, err
	}
	if cur.Description() == nil {
		return nil, nil
	}
	return cur.FetchAll(ctx)
}

func parseNamed(pairs []string) (map[string]any, error) {
	named := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, kerrors.WithKind(nil, xconn.ErrInvalidConfig, "Parameter must be name=value: "+p)
		}
		named[k] = v
	}
	return named, nil
}

// redactDSN returns a loggable form of dsn. MySQL passwords are masked; DSNs
// of drivers it cannot parse are hidden entirely.
func redactDSN(driver, dsn string) string {
	switch driver {
	case "sqlite3":
		return dsn
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "invalid"
		}
		if cfg.Passwd != "" {
			cfg.Passwd = "xxxxx"
		}
		return cfg.FormatDSN()
	default:
		return "redacted"
	}
}
