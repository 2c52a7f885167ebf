// Package sqldrv adapts database/sql drivers to the xconn driver interfaces.
//
// Each native connection is a dedicated *sql.DB capped at one open connection,
// with that connection pinned as a *sql.Conn. Session state (temporary tables,
// SQLite in-memory databases) therefore lives exactly as long as the xconn
// connection, including while it sits idle in an xconn pool. Transactions are
// begun with BeginTx on the pinned connection; xconn rolls back any open one
// before the connection goes back to the pool.
//
// Register the underlying driver as usual with a blank import:
//
//	import _ "github.com/mattn/go-sqlite3"
//
//	conn, err := xconn.Connect(ctx, sqldrv.New("sqlite3"), "file:app.db")
package sqldrv

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-mizu/xconn"
	"github.com/shopspring/decimal"
	"xorkevin.dev/kerrors"
)

// Driver implements [xconn.Driver] over a registered database/sql driver.
type Driver struct {
	name string
	log  *slog.Logger
}

// Option configures a Driver.
type Option func(d *Driver)

// WithLogger sets the logger for connection lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// New returns a Driver for the database/sql driver registered as driverName.
func New(driverName string, opts ...Option) *Driver {
	d := &Driver{
		name: driverName,
		log:  slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Name returns the database/sql driver name.
func (d *Driver) Name() string {
	return d.name
}

// Connect opens a new native connection for connStr.
func (d *Driver) Connect(ctx context.Context, connStr string) (xconn.Connection, error) {
	db, err := sql.Open(d.name, connStr)
	if err != nil {
		return nil, kerrors.WithMsg(err, "Failed to open database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, kerrors.WithMsg(err, "Failed to connect")
	}
	d.log.Debug("Native connection opened", slog.String("driver", d.name))
	return &connection{db: db, conn: conn}, nil
}

type connection struct {
	db   *sql.DB
	conn *sql.Conn
	tx   *sql.Tx

	closeOnce sync.Once
	closeErr  error
}

// queryer is satisfied by both *sql.Conn and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (c *connection) queryer() queryer {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

// AllocStatement pings the pinned connection before handing out a statement,
// so a pooled liveness probe reaches the server.
func (c *connection) AllocStatement(ctx context.Context) (xconn.Statement, error) {
	if err := c.conn.PingContext(ctx); err != nil {
		return nil, err
	}
	return &statement{conn: c, affected: -1}, nil
}

func (c *connection) Begin(ctx context.Context) error {
	if c.tx != nil {
		return kerrors.WithMsg(nil, "Transaction already in progress")
	}
	// The transaction outlives the statement that began it.
	tx, err := c.conn.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

func (c *connection) Commit() error {
	tx := c.tx
	c.tx = nil
	if tx == nil {
		return nil
	}
	return tx.Commit()
}

func (c *connection) Rollback() error {
	tx := c.tx
	c.tx = nil
	if tx == nil {
		return nil
	}
	return tx.Rollback()
}

func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		_ = c.Rollback()
		c.closeErr = errors.Join(c.conn.Close(), c.db.Close())
	})
	return c.closeErr
}

type column struct {
	kind     columnKind
	scale    int32
	hasScale bool
}

type statement struct {
	conn     *connection
	rows     *sql.Rows
	desc     []xconn.ColumnDescriptor
	cols     []column
	affected int64
}

func (s *statement) Execute(ctx context.Context, query string, args []any) error {
	if err := s.closeRows(); err != nil {
		return err
	}
	s.affected = -1
	q := s.conn.queryer()
	if isExec(query) {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil {
			s.affected = n
		}
		return nil
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if err := s.describe(rows); err != nil {
		_ = rows.Close()
		return err
	}
	if len(s.desc) == 0 {
		// Some drivers only run the statement when stepped.
		for rows.Next() {
		}
		err := rows.Err()
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		return err
	}
	s.rows = rows
	return nil
}

func (s *statement) describe(rows *sql.Rows) error {
	types, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	s.desc = nil
	s.cols = nil
	if len(types) == 0 {
		return nil
	}
	s.desc = make([]xconn.ColumnDescriptor, len(types))
	s.cols = make([]column, len(types))
	for i, ct := range types {
		dbType := ct.DatabaseTypeName()
		info := lookupType(dbType)
		d := xconn.ColumnDescriptor{
			Name:     ct.Name(),
			SQLType:  info.code,
			Nullable: true,
		}
		col := column{kind: info.kind}
		if n, ok := ct.Length(); ok {
			d.DisplaySize = n
			d.InternalSize = n
		}
		if p, sc, ok := ct.DecimalSize(); ok {
			d.Precision, d.Scale = p, sc
			col.scale, col.hasScale = int32(sc), true
		} else if p, sc, ok := declaredSize(dbType); ok && info.kind == kindDecimal {
			d.Precision, d.Scale = p, sc
			col.scale, col.hasScale = int32(sc), true
		}
		if nullable, ok := ct.Nullable(); ok {
			d.Nullable = nullable
		}
		s.desc[i] = d
		s.cols[i] = col
	}
	return nil
}

func (s *statement) Columns() ([]xconn.ColumnDescriptor, error) {
	return s.desc, nil
}

// RowCount reports rows affected by the last data-modifying statement, or -1.
func (s *statement) RowCount() int64 {
	return s.affected
}

func (s *statement) Next(ctx context.Context, dest []any) error {
	if s.rows == nil {
		return io.EOF
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	raw := make([]any, len(s.desc))
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return err
	}
	for i := range dest {
		if i < len(raw) {
			dest[i] = normalize(raw[i], s.cols[i])
		} else {
			dest[i] = nil
		}
	}
	return nil
}

// NextResultSet moves to the next result set of a multi-statement query.
func (s *statement) NextResultSet(ctx context.Context) (bool, error) {
	if s.rows == nil {
		return false, nil
	}
	if !s.rows.NextResultSet() {
		err := s.rows.Err()
		if cerr := s.closeRows(); err == nil {
			err = cerr
		}
		return false, err
	}
	if err := s.describe(s.rows); err != nil {
		return false, err
	}
	return true, nil
}

func (s *statement) Free() error {
	return s.closeRows()
}

func (s *statement) closeRows() error {
	rows := s.rows
	s.rows = nil
	s.desc = nil
	s.cols = nil
	if rows == nil {
		return nil
	}
	return rows.Close()
}

var execKeywords = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"REPLACE":  {},
	"MERGE":    {},
	"TRUNCATE": {},
}

// isExec reports whether query modifies rows without returning any, so it can
// run through ExecContext and report rows affected.
func isExec(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	if _, ok := execKeywords[strings.ToUpper(fields[0])]; !ok {
		return false
	}
	return !strings.Contains(strings.ToUpper(query), "RETURNING")
}

// normalize turns driver values into the shapes rows expose: text columns as
// string, decimal columns as decimal.Decimal carrying the column's scale when
// it is known. Values that do not parse are returned as fetched.
func normalize(v any, col column) any {
	switch col.kind {
	case kindText:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	case kindDecimal:
		var d decimal.Decimal
		switch x := v.(type) {
		case []byte:
			var err error
			if d, err = decimal.NewFromString(string(x)); err != nil {
				return v
			}
		case string:
			var err error
			if d, err = decimal.NewFromString(x); err != nil {
				return v
			}
		case float64:
			d = decimal.NewFromFloat(x)
		case int64:
			d = decimal.NewFromInt(x)
		default:
			return v
		}
		if col.hasScale {
			d = d.Round(col.scale)
		}
		return d
	}
	return v
}
