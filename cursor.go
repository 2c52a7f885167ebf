package xconn

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"xorkevin.dev/kerrors"
)

// Cursor executes queries on a connection and fetches their results as rows.
// A Cursor is not safe for concurrent use.
type Cursor struct {
	conn      *Conn
	lowercase bool
	arraySize int

	stmt      Statement
	desc      []ColumnDescriptor
	columnMap map[string]int
	rowCount  int64
	closed    bool
}

// CursorOption configures a cursor.
type CursorOption func(c *Cursor)

// Lowercase makes rows fetched by the cursor fall back to case-insensitive
// column lookup when an exact name does not match.
func Lowercase(on bool) CursorOption {
	return func(c *Cursor) {
		c.lowercase = on
	}
}

// ArraySize sets the default number of rows returned by FetchMany.
func ArraySize(n int) CursorOption {
	return func(c *Cursor) {
		if n > 0 {
			c.arraySize = n
		}
	}
}

func (c *Cursor) converters() *Converters {
	if c.conn == nil {
		return nil
	}
	return c.conn.conv
}

// Execute runs query with args and prepares the cursor to fetch its result.
// Any previous result is discarded.
func (c *Cursor) Execute(ctx context.Context, query string, args ...any) error {
	if c.closed {
		return kerrors.WithKind(nil, ErrClosed, "Cursor is closed")
	}
	if err := c.release(); err != nil {
		return kerrors.WithMsg(err, "Failed to free previous statement")
	}
	if err := c.conn.beginIfNeeded(ctx); err != nil {
		return err
	}
	stmt, err := c.conn.raw.AllocStatement(ctx)
	if err != nil {
		return kerrors.WithMsg(err, "Failed to allocate statement")
	}
	if err := stmt.Execute(ctx, query, args); err != nil {
		_ = stmt.Free()
		return kerrors.WithMsg(err, "Failed to execute query")
	}
	c.stmt = stmt
	if err := c.describe(); err != nil {
		_ = c.release()
		return err
	}
	return nil
}

// ExecuteMany runs query once per parameter set. Afterwards RowCount is the
// sum of the known row counts of the individual executions.
func (c *Cursor) ExecuteMany(ctx context.Context, query string, argSets [][]any) error {
	var total int64
	for _, args := range argSets {
		if err := c.Execute(ctx, query, args...); err != nil {
			return err
		}
		if c.rowCount > 0 {
			total += c.rowCount
		}
	}
	c.rowCount = total
	return nil
}

// NextSet advances to the next result set of the last query. It returns false
// and clears the description when there is none.
func (c *Cursor) NextSet(ctx context.Context) (bool, error) {
	if c.closed {
		return false, kerrors.WithKind(nil, ErrClosed, "Cursor is closed")
	}
	more := false
	if adv, ok := c.stmt.(ResultSetAdvancer); ok {
		var err error
		if more, err = adv.NextResultSet(ctx); err != nil {
			return false, kerrors.WithMsg(err, "Failed to advance result set")
		}
	}
	if !more {
		c.desc = nil
		c.columnMap = nil
		return false, nil
	}
	if err := c.describe(); err != nil {
		return false, err
	}
	return true, nil
}

// describe loads the description of the current result. Later columns win
// when names repeat.
func (c *Cursor) describe() error {
	desc, err := c.stmt.Columns()
	if err != nil {
		return kerrors.WithMsg(err, "Failed to describe result")
	}
	c.desc = nil
	c.columnMap = nil
	c.rowCount = -1
	if len(desc) == 0 {
		if rc, ok := c.stmt.(RowCounter); ok {
			c.rowCount = rc.RowCount()
		}
		return nil
	}
	c.desc = desc
	c.columnMap = make(map[string]int, len(desc))
	for i, d := range desc {
		c.columnMap[d.Name] = i
	}
	return nil
}

// RowCount returns the number of rows affected by the last statement when it
// produced no result set, or -1 when a result set is open or the driver cannot
// tell.
func (c *Cursor) RowCount() int64 {
	return c.rowCount
}

// Description returns the columns of the current result, or nil when the last
// query produced no result set.
func (c *Cursor) Description() []ColumnDescriptor {
	return c.desc
}

// FetchOne returns the next row. It returns [sql.ErrNoRows] once the result is
// exhausted.
func (c *Cursor) FetchOne(ctx context.Context) (*Row, error) {
	if c.closed {
		return nil, kerrors.WithKind(nil, ErrClosed, "Cursor is closed")
	}
	if c.stmt == nil || len(c.desc) == 0 {
		return nil, kerrors.WithKind(nil, ErrNoResultSet, "No result set to fetch from")
	}
	values := make([]any, len(c.desc))
	if err := c.stmt.Next(ctx, values); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, sql.ErrNoRows
		}
		return nil, kerrors.WithMsg(err, "Failed to fetch row")
	}
	r := NewRow(c, c.desc, values, c.columnMap)
	if failed := r.applyOutputConverters(c, c.desc); failed > 0 {
		c.conn.log.Debug("Output conversion failed, keeping raw values", slog.Int("columns", failed))
	}
	return r, nil
}

// FetchMany returns up to n rows. When n is not positive the cursor's array
// size is used. An exhausted result yields an empty slice.
func (c *Cursor) FetchMany(ctx context.Context, n int) ([]*Row, error) {
	if n <= 0 {
		n = c.arraySize
	}
	out := make([]*Row, 0, n)
	for len(out) < n {
		r, err := c.FetchOne(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// FetchAll returns every remaining row.
func (c *Cursor) FetchAll(ctx context.Context) ([]*Row, error) {
	var out []*Row
	for {
		r, err := c.FetchOne(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, r)
	}
}

// Close frees the cursor's statement. Rows already fetched stay usable.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.conn.forget(c)
	return c.release()
}

func (c *Cursor) release() error {
	stmt := c.stmt
	c.stmt = nil
	c.desc = nil
	c.columnMap = nil
	c.rowCount = -1
	if stmt == nil {
		return nil
	}
	return stmt.Free()
}
