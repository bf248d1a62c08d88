package pool

import (
	"context"

	"github.com/prettynatty/sqlx/pkg/driver"
)

// Tx is an in-progress transaction. It owns its connection lease; Commit or
// Rollback ends the transaction and returns the connection to the pool.
type Tx struct {
	conn *Conn
	done bool
}

// Conn returns the leased connection the transaction runs on.
func (t *Tx) Conn() *Conn {
	return t.conn
}

// Execute runs a statement inside the transaction.
func (t *Tx) Execute(ctx context.Context, sql string, args driver.Arguments) (uint64, error) {
	if t.done {
		return 0, ErrConnReleased
	}
	return t.conn.Execute(ctx, sql, args)
}

// Fetch runs a query inside the transaction.
func (t *Tx) Fetch(ctx context.Context, sql string, args driver.Arguments) (driver.Rows, error) {
	if t.done {
		return nil, ErrConnReleased
	}
	return t.conn.Fetch(ctx, sql, args)
}

// FetchOptional runs a query expected to produce zero or one row.
func (t *Tx) FetchOptional(ctx context.Context, sql string, args driver.Arguments) (driver.Row, error) {
	if t.done {
		return nil, ErrConnReleased
	}
	return t.conn.FetchOptional(ctx, sql, args)
}

// Commit commits the transaction and releases the connection.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrConnReleased
	}
	raw := t.conn.raw
	if raw == nil {
		return ErrConnReleased
	}
	err := raw.conn.Commit(ctx)
	t.finish()
	return err
}

// Rollback aborts the transaction and releases the connection. Rolling back
// a finished transaction is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	raw := t.conn.raw
	if raw == nil {
		return nil
	}
	err := raw.conn.Rollback(ctx)
	t.finish()
	return err
}

func (t *Tx) finish() {
	t.done = true
	t.conn.Release()
}
