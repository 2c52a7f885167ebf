package xconn

import (
	"context"
	"database/sql"
)

// QueryRows executes query on a fresh cursor and fetches every row.
//
// Rows carry the connection's output conversion and stay usable after the
// cursor is closed. An empty result yields a nil slice and no error.
//
// Example:
//
//	conn, err := xconn.Connect(ctx, drv, dsn)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	rows, err := xconn.QueryRows(ctx, conn, `SELECT id, email FROM users ORDER BY id`)
//	if err != nil {
//	    return err
//	}
//	for _, r := range rows {
//	    email, _ := r.Get("email")
//	    fmt.Println(r, email)
//	}
func QueryRows(ctx context.Context, c CursorOpener, query string, args ...any) (out []*Row, err error) {
	cur, err := c.Cursor()
	if err != nil {
		return nil, err
	}
	// Propagate cur.Close() error if nothing else failed.
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := cur.Execute(ctx, query, args...); err != nil {
		return nil, err
	}
	return cur.FetchAll(ctx)
}

// QueryRow executes query and returns its first row. It returns
// [sql.ErrNoRows] if the query yields no rows; further rows are ignored.
func QueryRow(ctx context.Context, c CursorOpener, query string, args ...any) (out *Row, err error) {
	cur, err := c.Cursor()
	if err != nil {
		return nil, err
	}
	// Ensure Close error is propagated if no earlier error occurred.
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := cur.Execute(ctx, query, args...); err != nil {
		return nil, err
	}
	if cur.Description() == nil {
		return nil, sql.ErrNoRows
	}
	return cur.FetchOne(ctx)
}

// Exec executes a statement that does not return rows (INSERT, UPDATE, DELETE, DDL).
func Exec(ctx context.Context, c CursorOpener, query string, args ...any) (err error) {
	cur, err := c.Cursor()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return cur.Execute(ctx, query, args...)
}
