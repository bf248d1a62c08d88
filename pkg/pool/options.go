package pool

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prettynatty/sqlx/pkg/driver"
)

// Options holds the pool configuration. Options are immutable once a pool is
// built.
type Options struct {
	// MaxSize is the maximum number of connections the pool will own,
	// leased or idle. Must be greater than zero.
	MaxSize uint32

	// MinSize is the number of connections, leased or idle, the pool keeps
	// open; it opens them at build and tops back up to this count in
	// maintenance. Must not exceed MaxSize.
	MinSize uint32

	// ConnectTimeout bounds the end-to-end latency of Acquire.
	ConnectTimeout time.Duration

	// MaxLifetime is the absolute age cap on a connection. Zero means
	// unlimited.
	MaxLifetime time.Duration

	// IdleTimeout is how long a connection may sit idle before the
	// maintenance task closes it. Zero means never.
	IdleTimeout time.Duration

	// TestOnAcquire pings idle connections before handing them out.
	TestOnAcquire bool
}

func defaultOptions() Options {
	return Options{
		MaxSize:        10,
		MinSize:        0,
		ConnectTimeout: 30 * time.Second,
		TestOnAcquire:  true,
	}
}

func (o Options) validate() error {
	if o.MaxSize == 0 {
		return configErrf("max size must be greater than zero")
	}
	if o.MinSize > o.MaxSize {
		return configErrf("min size %d exceeds max size %d", o.MinSize, o.MaxSize)
	}
	if o.ConnectTimeout <= 0 {
		return configErrf("connect timeout must be positive, got %s", o.ConnectTimeout)
	}
	return nil
}

// Builder configures and constructs a Pool.
type Builder struct {
	drv    driver.Driver
	opts   Options
	logger *zap.Logger
}

// NewBuilder returns a Builder with the default configuration.
func NewBuilder(drv driver.Driver) *Builder {
	return &Builder{
		drv:  drv,
		opts: defaultOptions(),
	}
}

// MaxSize sets the maximum number of connections in the pool.
func (b *Builder) MaxSize(n uint32) *Builder {
	b.opts.MaxSize = n
	return b
}

// MinSize sets the number of connections, leased or idle, the pool keeps
// open.
func (b *Builder) MinSize(n uint32) *Builder {
	b.opts.MinSize = n
	return b
}

// ConnectTimeout sets the maximum time spent acquiring a connection.
func (b *Builder) ConnectTimeout(d time.Duration) *Builder {
	b.opts.ConnectTimeout = d
	return b
}

// MaxLifetime sets the absolute age cap on a connection.
func (b *Builder) MaxLifetime(d time.Duration) *Builder {
	b.opts.MaxLifetime = d
	return b
}

// IdleTimeout sets how long a connection may sit idle before being closed.
func (b *Builder) IdleTimeout(d time.Duration) *Builder {
	b.opts.IdleTimeout = d
	return b
}

// TestOnAcquire controls whether idle connections are pinged on checkout.
func (b *Builder) TestOnAcquire(enabled bool) *Builder {
	b.opts.TestOnAcquire = enabled
	return b
}

// Logger sets the structured logger used by the pool and its maintenance
// task. The default discards everything.
func (b *Builder) Logger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration and constructs the pool. If MinSize is
// nonzero the initial connections are opened before Build returns; the whole
// build fails if any of them fail.
func (b *Builder) Build(ctx context.Context, url string) (*Pool, error) {
	if err := b.opts.validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	shared, err := newSharedPool(ctx, b.drv, url, b.opts, logger)
	if err != nil {
		return nil, err
	}
	return &Pool{shared: shared}, nil
}
