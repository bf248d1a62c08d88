package pool

import (
	"context"

	"github.com/prettynatty/sqlx/pkg/driver"
)

// Conn is a leased connection. It is an exclusive handle: no other caller
// can observe the underlying connection until Release is called.
//
// Every Conn must be released. Query errors do not invalidate the lease; the
// connection still goes back to the pool unless MarkDefective was called.
type Conn struct {
	raw       *rawConn
	shared    *sharedPool
	defective bool
}

// Release returns the connection to the pool. If the pool has been closed,
// or the connection was marked defective, it is destroyed instead. Release
// is idempotent; the Conn is unusable afterwards.
func (c *Conn) Release() {
	raw := c.raw
	if raw == nil {
		return
	}
	c.raw = nil

	if c.defective {
		c.shared.destroy(raw)
		return
	}
	c.shared.release(raw)
}

// MarkDefective tells the pool a fatal error was observed on this
// connection; Release will destroy it rather than re-queue it.
func (c *Conn) MarkDefective() {
	c.defective = true
}

// Raw exposes the underlying driver connection for the duration of the
// lease.
func (c *Conn) Raw() (driver.Conn, error) {
	if c.raw == nil {
		return nil, ErrConnReleased
	}
	return c.raw.conn, nil
}

// Send executes raw SQL with no parameters and no result rows.
func (c *Conn) Send(ctx context.Context, sql string) error {
	if c.raw == nil {
		return ErrConnReleased
	}
	return c.raw.conn.Send(ctx, sql)
}

// Execute runs a statement and returns the affected-row count.
func (c *Conn) Execute(ctx context.Context, sql string, args driver.Arguments) (uint64, error) {
	if c.raw == nil {
		return 0, ErrConnReleased
	}
	return c.raw.conn.Execute(ctx, sql, args)
}

// Fetch runs a query and returns a cursor over its rows.
func (c *Conn) Fetch(ctx context.Context, sql string, args driver.Arguments) (driver.Rows, error) {
	if c.raw == nil {
		return nil, ErrConnReleased
	}
	return c.raw.conn.Fetch(ctx, sql, args)
}

// FetchOptional runs a query expected to produce zero or one row.
func (c *Conn) FetchOptional(ctx context.Context, sql string, args driver.Arguments) (driver.Row, error) {
	if c.raw == nil {
		return nil, ErrConnReleased
	}
	return c.raw.conn.FetchOptional(ctx, sql, args)
}

// Describe reports the parameter and column schema of a statement.
func (c *Conn) Describe(ctx context.Context, sql string) (*driver.Describe, error) {
	if c.raw == nil {
		return nil, ErrConnReleased
	}
	return c.raw.conn.Describe(ctx, sql)
}

// Ping checks the underlying connection.
func (c *Conn) Ping(ctx context.Context) error {
	if c.raw == nil {
		return ErrConnReleased
	}
	return c.raw.conn.Ping(ctx)
}
