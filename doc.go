/*
Package xconn is the client-side resource layer between application code and a
native SQL driver. It keeps a keyed pool of idle, validated connections and
materializes fetched records as rows that can be read by position or by column
name, with per-type output conversion applied on the way out.

# Overview

A [Driver] creates native connections; xconn never speaks a wire protocol
itself. [Connect] asks a [Pool] for an idle connection under the exact
connection string and falls back to the driver on a miss. [Conn.Close] hands
the native connection back to the pool. Cursors opened on a [Conn] execute
queries and return [Row] values.

The sqldrv subpackage adapts any database/sql driver (SQLite, MySQL, ...) to
the [Driver] interface.

# Pooling

The process-wide pool ([Default]) starts disabled. [EnablePooling] switches it
on with a per-key size cap and an idle timeout; [DisablePooling] closes every
held connection and switches it off. While disabled, every Close really closes.

  - Reuse is last-in first-out, so the warmest connection is handed out first.
  - An entry idle for at least the idle timeout is closed instead of reused.
    The timeout in effect at lookup is the one applied.
  - Every reused entry passes a liveness probe first (allocate and free a
    statement handle). Entries that fail are closed and skipped.
  - A key never holds more than the cap; surplus connections are closed on
    return, never queued.
  - Probe and close failures never surface. The pool mutex is not held while
    probing or closing.

Pools can also be created with [NewPool] and passed to [Connect] with
[UsePool], which is what tests do.

# Rows

A [Row] is indexable ([Row.Index]), iterable ([Row.All]), has a length
([Row.Len]) and is addressable by column name ([Row.Get]). Name lookup tries
the exact name first; cursors opened with [Lowercase] then fall back to a
case-insensitive match in declaration order. Misses return [ErrAttribute] and
out-of-range positions return [ErrIndex]. [Row.Equal] compares against []any
or another row, and [Row.String] renders a tuple like (1, "x", NULL) using the
decimal separator set by [SetDecimalSeparator].

# Output conversion

Converters are registered per SQL type code on a connection
([Conn.AddOutputConverter]). Each fetched value with a descriptor and a
non-nil value is passed to the converter for its column type; text and binary
values with no such converter use the [SQLWVarChar] converter. Text reaches
converters as UTF-16LE bytes. A converter that fails (or panics) leaves the
raw value in place and does not affect the other columns.

# Named parameters

[BindNamed] rewrites :name parameters to "?" markers and expands slices for
IN lists; [Cursor.ExecuteNamed] binds and executes in one step.

# Transactions

Connections start in autocommit mode. After [Conn.SetAutocommit](false) the
first Execute begins a transaction that lasts until [Conn.Commit] or
[Conn.Rollback]. [Conn.Close] rolls back whatever is still open before the
native connection goes back to the pool.

# Scanning into structs

[Row.Scan] fills a struct from a row, matching columns to fields by `db` tag
or field name:

	type User struct {
	    ID    int64  `db:"id"`
	    Email string `db:"email"`
	}

	row, err := xconn.QueryRow(ctx, conn, "SELECT id, email FROM users WHERE id = ?", 1)
	if err != nil {
	    return err
	}
	var u User
	err = row.Scan(&u)

# Error handling

  - Error kinds are matched with errors.Is: [ErrAttribute], [ErrIndex],
    [ErrInvalidConfig], [ErrClosed], [ErrNoResultSet], [ErrBind],
    [ErrNotSupported], [ErrScan].
  - FetchOne and QueryRow return sql.ErrNoRows once there is nothing to fetch.
  - Driver errors are wrapped with context and remain reachable via errors.Is.
*/
package xconn
