package xconn

import (
	"context"
	"log/slog"
	"sync"

	"xorkevin.dev/kerrors"
)

// CursorOpener is implemented by *Conn and any wrapper that can open a cursor.
type CursorOpener interface {
	Cursor(opts ...CursorOption) (*Cursor, error)
}

// Conn is an application-level connection. It wraps a native Connection
// obtained from a Pool or, on a pool miss, from a Driver, and owns the output
// converter registry used by rows fetched through it.
type Conn struct {
	connStr string
	raw     Connection
	pool    *Pool
	conv    *Converters
	log     *slog.Logger

	mu      sync.Mutex
	closed  bool
	cursors map[*Cursor]struct{}
	manual  bool // autocommit off
	inTx    bool
}

type connOptions struct {
	pool *Pool
	log  *slog.Logger
}

// ConnOption configures Connect.
type ConnOption func(o *connOptions)

// UsePool selects the pool Connect draws from and Close returns to. The
// process-wide [Default] pool is used otherwise.
func UsePool(p *Pool) ConnOption {
	return func(o *connOptions) {
		o.pool = p
	}
}

// UseLogger sets the logger for connection and cursor events.
func UseLogger(l *slog.Logger) ConnOption {
	return func(o *connOptions) {
		o.log = l
	}
}

// Connect returns a connection for connStr. A validated idle connection from
// the pool is reused when one is available; otherwise drv creates a new one.
func Connect(ctx context.Context, drv Driver, connStr string, opts ...ConnOption) (*Conn, error) {
	o := connOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.pool == nil {
		o.pool = Default()
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}

	raw := o.pool.Get(ctx, connStr)
	reused := raw != nil
	if raw == nil {
		var err error
		raw, err = drv.Connect(ctx, connStr)
		if err != nil {
			return nil, kerrors.WithMsg(err, "Failed to connect")
		}
	}
	o.log.Debug("Connection opened", slog.Bool("pooled", reused))
	return &Conn{
		connStr: connStr,
		raw:     raw,
		pool:    o.pool,
		conv:    NewConverters(),
		log:     o.log,
		cursors: make(map[*Cursor]struct{}),
	}, nil
}

// Converters returns the output converter registry of the connection.
func (c *Conn) Converters() *Converters {
	return c.conv
}

// AddOutputConverter registers fn for values of sqlType fetched through c.
func (c *Conn) AddOutputConverter(sqlType int, fn OutputConverter) {
	c.conv.Add(sqlType, fn)
}

// GetOutputConverter returns the converter registered for sqlType, or nil.
func (c *Conn) GetOutputConverter(sqlType int) OutputConverter {
	return c.conv.Get(sqlType)
}

// RemoveOutputConverter unregisters the converter for sqlType.
func (c *Conn) RemoveOutputConverter(sqlType int) {
	c.conv.Remove(sqlType)
}

// ClearOutputConverters unregisters every converter.
func (c *Conn) ClearOutputConverters() {
	c.conv.Clear()
}

// Cursor opens a cursor on the connection.
func (c *Conn) Cursor(opts ...CursorOption) (*Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, kerrors.WithKind(nil, ErrClosed, "Connection is closed")
	}
	cur := &Cursor{
		conn:      c,
		arraySize: 1,
		rowCount:  -1,
	}
	for _, fn := range opts {
		fn(cur)
	}
	c.cursors[cur] = struct{}{}
	return cur, nil
}

func (c *Conn) forget(cur *Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cursors, cur)
}

// Autocommit reports whether each statement commits on its own. It is true
// for new connections.
func (c *Conn) Autocommit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.manual
}

// InTransaction reports whether a transaction begun by a cursor is open.
func (c *Conn) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inTx
}

// SetAutocommit switches autocommit mode. With autocommit off, the next
// statement begins a transaction that lasts until Commit or Rollback.
// Switching autocommit back on commits an open transaction. Turning it off
// requires a native connection implementing [Transactor].
func (c *Conn) SetAutocommit(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return kerrors.WithKind(nil, ErrClosed, "Connection is closed")
	}
	if !on {
		if _, ok := c.raw.(Transactor); !ok {
			return kerrors.WithKind(nil, ErrNotSupported, "Connection does not support transactions")
		}
	}
	if on && c.inTx {
		if err := c.endTx(true); err != nil {
			return err
		}
	}
	c.manual = !on
	return nil
}

// Commit commits the open transaction, if any.
func (c *Conn) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return kerrors.WithKind(nil, ErrClosed, "Connection is closed")
	}
	return c.endTx(true)
}

// Rollback rolls back the open transaction, if any.
func (c *Conn) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return kerrors.WithKind(nil, ErrClosed, "Connection is closed")
	}
	return c.endTx(false)
}

// endTx ends the open transaction. The transaction counts as ended even when
// the driver reports an error. c.mu must be held.
func (c *Conn) endTx(commit bool) error {
	if !c.inTx {
		return nil
	}
	c.inTx = false
	tx := c.raw.(Transactor)
	if commit {
		if err := tx.Commit(); err != nil {
			return kerrors.WithMsg(err, "Failed to commit")
		}
		return nil
	}
	if err := tx.Rollback(); err != nil {
		return kerrors.WithMsg(err, "Failed to roll back")
	}
	return nil
}

func (c *Conn) beginIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.manual || c.inTx {
		return nil
	}
	if err := c.raw.(Transactor).Begin(ctx); err != nil {
		return kerrors.WithMsg(err, "Failed to begin transaction")
	}
	c.inTx = true
	return nil
}

// Close closes any open cursors, rolls back an open transaction and hands the
// native connection back to the pool, which keeps it for reuse or closes it.
// A connection whose rollback fails is closed instead of pooled. Closing twice
// returns an [ErrClosed] kind error.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return kerrors.WithKind(nil, ErrClosed, "Connection is already closed")
	}
	c.closed = true
	cursors := make([]*Cursor, 0, len(c.cursors))
	for cur := range c.cursors {
		cursors = append(cursors, cur)
	}
	c.cursors = nil
	c.mu.Unlock()

	for _, cur := range cursors {
		cur.closed = true
		if err := cur.release(); err != nil {
			c.log.Debug("Failed freeing cursor statement", slog.Any("error", err))
		}
	}

	c.mu.Lock()
	err := c.endTx(false)
	c.mu.Unlock()
	if err != nil {
		c.log.Debug("Failed rolling back on close, discarding connection", slog.Any("error", err))
		_ = closeQuietly(c.raw)
		return nil
	}
	c.pool.Put(c.connStr, c.raw)
	c.log.Debug("Connection released")
	return nil
}
