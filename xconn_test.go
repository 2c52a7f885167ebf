package xconn

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// fakeHandler answers a query with a description and the records to fetch.
type fakeHandler func(query string, args []any) (cols []ColumnDescriptor, rows [][]any, err error)

// fakeSet is one result set of a multi-set query.
type fakeSet struct {
	cols []ColumnDescriptor
	data [][]any
}

type fakeDriver struct {
	h     fakeHandler
	multi func(query string) []fakeSet
	tx    bool

	mu      sync.Mutex
	conns   []*fakeConn
	txConns []*fakeTxConn
	err     error
	nextID  int
}

func (d *fakeDriver) Connect(ctx context.Context, connStr string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.nextID++
	c := &fakeConn{id: d.nextID, h: d.h, multi: d.multi}
	d.conns = append(d.conns, c)
	if d.tx {
		tc := &fakeTxConn{fakeConn: c}
		d.txConns = append(d.txConns, tc)
		return tc, nil
	}
	return c, nil
}

func (d *fakeDriver) opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

type fakeConn struct {
	id       int
	h        fakeHandler
	multi    func(query string) []fakeSet
	allocErr error
	closeErr error

	allocs atomic.Int32
	frees  atomic.Int32
	closes atomic.Int32
}

func newFakeConn(id int) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) AllocStatement(ctx context.Context) (Statement, error) {
	c.allocs.Add(1)
	if c.allocErr != nil {
		return nil, c.allocErr
	}
	return &fakeStmt{conn: c}, nil
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	return c.closeErr
}

// fakeTxConn is a fakeConn that supports transactions.
type fakeTxConn struct {
	*fakeConn
	rollbackErr error

	begins    atomic.Int32
	commits   atomic.Int32
	rollbacks atomic.Int32
}

func (c *fakeTxConn) Begin(ctx context.Context) error {
	c.begins.Add(1)
	return nil
}

func (c *fakeTxConn) Commit() error {
	c.commits.Add(1)
	return nil
}

func (c *fakeTxConn) Rollback() error {
	c.rollbacks.Add(1)
	return c.rollbackErr
}

type fakeStmt struct {
	conn *fakeConn
	cols []ColumnDescriptor
	data [][]any
	more []fakeSet
	i    int
}

func (s *fakeStmt) Execute(ctx context.Context, query string, args []any) error {
	if s.conn.multi != nil {
		sets := s.conn.multi(query)
		if len(sets) == 0 {
			return errors.New("fake: no result sets")
		}
		s.cols, s.data, s.more, s.i = sets[0].cols, sets[0].data, sets[1:], 0
		return nil
	}
	if s.conn.h == nil {
		return errors.New("fake: no handler")
	}
	cols, data, err := s.conn.h(query, args)
	if err != nil {
		return err
	}
	s.cols, s.data, s.more, s.i = cols, data, nil, 0
	return nil
}

// RowCount treats the records of a statement without columns as affected rows.
func (s *fakeStmt) RowCount() int64 {
	if len(s.cols) > 0 {
		return -1
	}
	return int64(len(s.data))
}

func (s *fakeStmt) NextResultSet(ctx context.Context) (bool, error) {
	if len(s.more) == 0 {
		return false, nil
	}
	next := s.more[0]
	s.cols, s.data, s.more, s.i = next.cols, next.data, s.more[1:], 0
	return true, nil
}

func (s *fakeStmt) Columns() ([]ColumnDescriptor, error) {
	return s.cols, nil
}

func (s *fakeStmt) Next(ctx context.Context, dest []any) error {
	if s.i >= len(s.data) {
		return io.EOF
	}
	row := s.data[s.i]
	for i := range dest {
		if i < len(row) {
			dest[i] = row[i]
		} else {
			dest[i] = nil
		}
	}
	s.i++
	return nil
}

func (s *fakeStmt) Free() error {
	s.conn.frees.Add(1)
	return nil
}

func cols(names ...string) []ColumnDescriptor {
	out := make([]ColumnDescriptor, len(names))
	for i, n := range names {
		out[i] = ColumnDescriptor{Name: n, SQLType: SQLVarChar}
	}
	return out
}
