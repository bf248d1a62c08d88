// Package pool multiplexes a bounded set of live database connections across
// concurrent callers. It enforces size, liveness and lifetime policies and
// keeps a background task that reaps stale connections and refills to the
// configured minimum.
package pool

import (
	"context"
	"time"

	"github.com/prettynatty/sqlx/pkg/driver"
)

// Pool is a handle to a shared connection pool. Copies of a Pool share the
// same underlying state; dropping a handle does not close the pool.
type Pool struct {
	shared *sharedPool
}

// New builds a pool with the default configuration.
func New(ctx context.Context, drv driver.Driver, url string) (*Pool, error) {
	return NewBuilder(drv).Build(ctx, url)
}

// Acquire retrieves a connection from the pool, waiting for at most the
// configured connect timeout.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	raw, err := p.shared.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{raw: raw, shared: p.shared}, nil
}

// TryAcquire retrieves an idle connection if one is immediately available,
// returning nil otherwise. It never waits and never opens a new connection.
func (p *Pool) TryAcquire() *Conn {
	raw := p.shared.tryAcquire()
	if raw == nil {
		return nil
	}
	return &Conn{raw: raw, shared: p.shared}
}

// Begin acquires a connection and starts a transaction on it. The
// transaction owns the lease until Commit or Rollback.
func (p *Pool) Begin(ctx context.Context) (*Tx, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.raw.conn.Begin(ctx); err != nil {
		conn.Release()
		return nil, err
	}
	return &Tx{conn: conn}, nil
}

// Close shuts the pool down. New acquires fail immediately; Close does not
// return until every outstanding lease has been released and every
// connection closed, or until ctx is done, in which case it returns ctx's
// error while shutdown continues as leases come back.
func (p *Pool) Close(ctx context.Context) error {
	return p.shared.close(ctx)
}

// Size returns the number of connections currently owned by the pool,
// leased or idle.
func (p *Pool) Size() uint32 {
	return uint32(p.shared.size.Load())
}

// Idle returns the number of idle connections.
func (p *Pool) Idle() int {
	return p.shared.numIdle()
}

// MaxSize returns the configured maximum pool size.
func (p *Pool) MaxSize() uint32 {
	return p.shared.opts.MaxSize
}

// MinSize returns the configured minimum connection count.
func (p *Pool) MinSize() uint32 {
	return p.shared.opts.MinSize
}

// ConnectTimeout returns the configured acquire deadline.
func (p *Pool) ConnectTimeout() time.Duration {
	return p.shared.opts.ConnectTimeout
}

// MaxLifetime returns the configured connection age cap, zero if unlimited.
func (p *Pool) MaxLifetime() time.Duration {
	return p.shared.opts.MaxLifetime
}

// IdleTimeout returns the configured idle cap, zero if connections are
// never reaped for idleness.
func (p *Pool) IdleTimeout() time.Duration {
	return p.shared.opts.IdleTimeout
}
