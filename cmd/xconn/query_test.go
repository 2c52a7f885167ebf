package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/go-mizu/xconn"
	"github.com/stretchr/testify/require"
)

func testConfig() queryConfig {
	return queryConfig{
		Driver:           "sqlite3",
		DSN:              ":memory:",
		PoolEnabled:      true,
		PoolMaxSize:      2,
		PoolIdleTimeout:  time.Minute,
		DecimalSeparator: ".",
		Repeat:           1,
		Format:           formatTuple,
	}
}

func TestQueryConfig_Validate(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		Name   string
		Modify func(cfg *queryConfig)
		Err    bool
	}{
		{Name: "valid", Modify: func(cfg *queryConfig) {}},
		{Name: "yaml", Modify: func(cfg *queryConfig) { cfg.Format = formatYAML }},
		{Name: "no driver", Modify: func(cfg *queryConfig) { cfg.Driver = "" }, Err: true},
		{Name: "no dsn", Modify: func(cfg *queryConfig) { cfg.DSN = "" }, Err: true},
		{Name: "zero repeat", Modify: func(cfg *queryConfig) { cfg.Repeat = 0 }, Err: true},
		{Name: "unknown format", Modify: func(cfg *queryConfig) { cfg.Format = "csv" }, Err: true},
	} {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			cfg := testConfig()
			tc.Modify(&cfg)
			err := cfg.validate()
			if tc.Err {
				assert.ErrorIs(err, xconn.ErrInvalidConfig)
				return
			}
			assert.NoError(err)
		})
	}
}

func TestRedactDSN(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	redacted := redactDSN("mysql", "app:s3cret@tcp(127.0.0.1:3306)/shop")
	assert.NotContains(redacted, "s3cret")
	assert.Contains(redacted, "app:")
	assert.Contains(redacted, "tcp(127.0.0.1:3306)/shop")

	assert.Equal("file:app.db", redactDSN("sqlite3", "file:app.db"))
	assert.Equal("redacted", redactDSN("postgres", "postgres://u:p@host/db"))
}

func TestRunQuery(t *testing.T) {
	assert := require.New(t)

	var logs bytes.Buffer
	log := newLogger(&logs, "info", "json")

	var out bytes.Buffer
	cfg := testConfig()
	cfg.Repeat = 3
	assert.NoError(runQuery(context.Background(), log, &out, cfg, `SELECT 1 AS one, 'x' AS name, ? AS arg`, []any{"a"}))
	assert.Equal("(1, \"x\", \"a\")\n", out.String())

	// Every run after the first reuses the pooled connection.
	assert.Equal(3, strings.Count(logs.String(), `"msg":"Query finished"`))
	assert.Equal(3, strings.Count(logs.String(), `"pooled":1`))

	out.Reset()
	cfg.Format = formatYAML
	cfg.Repeat = 1
	assert.NoError(runQuery(context.Background(), log, &out, cfg, `SELECT 1 AS one, x'ff00' AS raw`, nil))
	assert.Equal("- one: 1\n  raw: ff00\n", out.String())

	out.Reset()
	assert.NoError(runQuery(context.Background(), log, &out, cfg, `CREATE TABLE t (v INTEGER)`, nil))
	assert.Empty(out.String())

	assert.Error(runQuery(context.Background(), log, &out, cfg, `SELECT * FROM missing`, nil))
}

func TestCmd_Query(t *testing.T) {
	t.Setenv("XCONN_REPEAT", "2")

	assert := require.New(t)

	c := New()
	root := c.newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"query", "--dsn", ":memory:", "--lowercase", "SELECT 2 AS Two"})
	assert.NoError(root.Execute())
	assert.Equal("(2)\n", out.String())
	assert.Equal(2, c.v.GetInt("repeat"))

	out.Reset()
	root = New().newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"query", "--dsn", ":memory:", "-p", "name=ada", "-p", "n=2", "SELECT :name AS name, :n AS n"})
	assert.NoError(root.Execute())
	assert.Equal("(\"ada\", \"2\")\n", out.String())

	root = New().newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"query", "--dsn", ":memory:", "-p", "a=1", "SELECT :a", "extra"})
	assert.ErrorIs(root.Execute(), xconn.ErrInvalidConfig)

	root = New().newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"query", "--dsn", ":memory:", "--format", "csv", "SELECT 1"})
	assert.ErrorIs(root.Execute(), xconn.ErrInvalidConfig)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "text")
	l.Info("hidden")
	l.Warn("shown", slog.Int("n", 1))
	assert.NotContains(buf.String(), "hidden")
	assert.Contains(buf.String(), "msg=shown n=1")
}
