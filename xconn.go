package xconn

import (
	"context"
)

// Driver creates native connections. It is implemented by adapters such as
// sqldrv and by anything else that can open a connection from a connection
// string.
type Driver interface {
	Connect(ctx context.Context, connStr string) (Connection, error)
}

// Connection is an opaque native connection. The pool only ever calls
// AllocStatement (as a liveness probe, immediately followed by Free) and Close.
//
// Close must be safe to call more than once.
type Connection interface {
	AllocStatement(ctx context.Context) (Statement, error)
	Close() error
}

// Statement is a native statement handle. A statement executes one query at a
// time; Next copies the current record into dest and returns io.EOF once the
// result set is exhausted.
type Statement interface {
	Execute(ctx context.Context, query string, args []any) error
	Columns() ([]ColumnDescriptor, error)
	Next(ctx context.Context, dest []any) error
	Free() error
}

// Transactor is implemented by connections that support explicit
// transactions. Connections without it only run in autocommit mode.
type Transactor interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error
}

// RowCounter is implemented by statements that know how many rows the last
// Execute affected. RowCount returns -1 when the count is unknown.
type RowCounter interface {
	RowCount() int64
}

// ResultSetAdvancer is implemented by statements whose Execute may produce
// more than one result set. NextResultSet reports whether another set is
// ready; Columns then describes it.
type ResultSetAdvancer interface {
	NextResultSet(ctx context.Context) (bool, error)
}

// ColumnDescriptor describes one column of a result set. It carries the seven
// fields of a conventional cursor description.
type ColumnDescriptor struct {
	Name         string
	SQLType      int
	DisplaySize  int64
	InternalSize int64
	Precision    int64
	Scale        int64
	Nullable     bool
}
