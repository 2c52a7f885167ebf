package xconn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"xorkevin.dev/kerrors"
)

// Default pool limits, applied by EnablePooling callers that have no better
// numbers.
const (
	DefaultMaxSize     = 100
	DefaultIdleTimeout = 600 * time.Second
)

type pooledEntry struct {
	conn       Connection
	returnedAt time.Time
}

// Pool is a keyed cache of idle native connections. Connections are
// partitioned by the exact connection string; no normalization is applied.
//
// A Pool starts disabled. While disabled, Get always misses and Put closes the
// connection it is handed. Enable switches pooling on (or changes its limits),
// Disable closes everything held and switches it off again.
//
// The mutex guards only list manipulation. Liveness probes and Close calls run
// with the mutex released.
type Pool struct {
	mu          sync.Mutex
	entries     map[string][]pooledEntry
	enabled     bool
	maxSize     int
	idleTimeout time.Duration

	now func() time.Time
	log *slog.Logger
}

// PoolOption configures a Pool.
type PoolOption func(p *Pool)

// WithLogger sets the logger used to report swallowed probe and close failures.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock replaces the time source. Its readings must carry a monotonic
// component (as [time.Now] does) for idle durations to ignore wall clock jumps.
func WithClock(now func() time.Time) PoolOption {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPool returns a disabled pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		entries:     make(map[string][]pooledEntry),
		maxSize:     DefaultMaxSize,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		log:         slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// --- process-wide pool ---

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the process-wide pool used by Connect when no UsePool
// option is given. It is disabled until EnablePooling is called.
func Default() *Pool {
	defaultPoolOnce.Do(func() { defaultPool = NewPool() })
	return defaultPool
}

// EnablePooling enables the process-wide pool. See [Pool.Enable].
func EnablePooling(maxSize int, idleTimeout time.Duration) error {
	return Default().Enable(maxSize, idleTimeout)
}

// DisablePooling closes every connection held by the process-wide pool and
// disables it. See [Pool.Disable].
func DisablePooling() {
	Default().Disable()
}

// Enable switches the pool into active mode with the given limits. It may be
// called again to change them; entries already held are judged by the new
// idle timeout at their next lookup.
//
// maxSize must be positive and idleTimeout must not be negative.
func (p *Pool) Enable(maxSize int, idleTimeout time.Duration) error {
	if maxSize <= 0 {
		return kerrors.WithKind(nil, ErrInvalidConfig, fmt.Sprintf("Pool max size must be positive: %d", maxSize))
	}
	if idleTimeout < 0 {
		return kerrors.WithKind(nil, ErrInvalidConfig, fmt.Sprintf("Pool idle timeout must not be negative: %s", idleTimeout))
	}
	p.mu.Lock()
	p.enabled = true
	p.maxSize = maxSize
	p.idleTimeout = idleTimeout
	p.mu.Unlock()
	p.log.Debug("Pooling enabled", slog.Int("max_size", maxSize), slog.Duration("idle_timeout", idleTimeout))
	return nil
}

// Disable closes every pooled connection across every key, clears all state,
// and disables the pool.
func (p *Pool) Disable() {
	p.mu.Lock()
	held := p.entries
	p.entries = make(map[string][]pooledEntry)
	p.enabled = false
	p.mu.Unlock()

	n := 0
	for _, list := range held {
		for _, e := range list {
			p.discard(e.conn, "pool disabled")
			n++
		}
	}
	p.log.Debug("Pooling disabled", slog.Int("closed", n))
}

// Enabled reports whether the pool is in active mode.
func (p *Pool) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Len returns the number of idle connections held for key.
func (p *Pool) Len(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries[key])
}

// Stats returns the number of idle connections held per key.
func (p *Pool) Stats() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := make(map[string]int, len(p.entries))
	for key, list := range p.entries {
		stats[key] = len(list)
	}
	return stats
}

// Get returns a validated idle connection for key, or nil when the pool is
// disabled or holds nothing usable for key. The caller then creates a fresh
// connection itself.
//
// Entries are tried most recently returned first. An entry idle for at least
// the idle timeout is closed without probing; an entry that fails its
// liveness probe is closed too. Both cases are silent and the search moves on
// to the next entry.
func (p *Pool) Get(ctx context.Context, key string) Connection {
	for {
		e, idleTimeout, ok := p.pop(key)
		if !ok {
			return nil
		}
		if p.now().Sub(e.returnedAt) >= idleTimeout {
			p.discard(e.conn, "idle timeout")
			continue
		}
		if err := probe(ctx, e.conn); err != nil {
			p.log.Debug("Pooled connection failed liveness probe", slog.Any("error", err))
			p.discard(e.conn, "probe failed")
			continue
		}
		return e.conn
	}
}

// Put returns conn to the pool under key. If the pool is disabled or key
// already holds the maximum number of idle connections, conn is closed
// instead.
func (p *Pool) Put(key string, conn Connection) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		p.discard(conn, "pool disabled")
		return
	}
	list := p.entries[key]
	if len(list) >= p.maxSize {
		p.mu.Unlock()
		p.discard(conn, "pool full")
		return
	}
	p.entries[key] = append(list, pooledEntry{conn: conn, returnedAt: p.now()})
	p.mu.Unlock()
}

// pop removes the most recently returned entry for key, along with the idle
// timeout in effect at the time of the pop.
func (p *Pool) pop(key string) (pooledEntry, time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return pooledEntry{}, 0, false
	}
	list := p.entries[key]
	if len(list) == 0 {
		return pooledEntry{}, 0, false
	}
	idx := len(list) - 1
	e := list[idx]
	list[idx] = pooledEntry{}
	if idx == 0 {
		delete(p.entries, key)
	} else {
		p.entries[key] = list[:idx]
	}
	return e, p.idleTimeout, true
}

// discard closes conn and drops any close error. Keys may carry credentials
// and are never logged.
func (p *Pool) discard(conn Connection, reason string) {
	if err := closeQuietly(conn); err != nil {
		p.log.Debug("Failed closing pooled connection", slog.String("reason", reason), slog.Any("error", err))
	}
}

// probe allocates and immediately frees a statement handle.
func probe(ctx context.Context, conn Connection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = kerrors.WithMsg(nil, fmt.Sprintf("Liveness probe panicked: %v", r))
		}
	}()
	stmt, err := conn.AllocStatement(ctx)
	if err != nil {
		return err
	}
	return stmt.Free()
}

func closeQuietly(conn Connection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = kerrors.WithMsg(nil, fmt.Sprintf("Close panicked: %v", r))
		}
	}()
	return conn.Close()
}
