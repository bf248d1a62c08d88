package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prettynatty/sqlx/pkg/driver"
)

// pingTimeout caps the liveness check on checkout. The remaining acquire
// deadline clamps it further.
const pingTimeout = time.Second

// closeTimeout bounds the best-effort close of a discarded connection.
const closeTimeout = 5 * time.Second

// rawConn is the pool's exclusive wrapper around a live driver connection.
type rawConn struct {
	id        uuid.UUID
	conn      driver.Conn
	createdAt time.Time
}

// idleConn is a rawConn parked in the idle queue.
type idleConn struct {
	raw   *rawConn
	since time.Time
}

// sharedPool is the state shared by every Pool handle.
//
// Invariants: size never exceeds opts.MaxSize; every counted rawConn is
// either in idleCh or held by exactly one lease; once closed is set no new
// connection is opened and every release destroys instead of re-queueing.
type sharedPool struct {
	drv  driver.Driver
	url  string
	opts Options
	log  *zap.Logger

	// size counts live connections owned by the pool, leased or idle.
	size   atomic.Int32
	closed atomic.Bool

	// idleCh is the FIFO idle queue. Capacity equals MaxSize, which bounds
	// the live connection count, so a return send can never block.
	idleCh chan idleConn

	// closeCh is closed when shutdown begins; it wakes parked waiters.
	closeCh chan struct{}

	// drainedCh is closed when size reaches zero after shutdown began.
	drainedCh   chan struct{}
	drainedOnce sync.Once

	stopMaint chan struct{}
	stopOnce  sync.Once
	maintDone chan struct{}
}

func newSharedPool(ctx context.Context, drv driver.Driver, url string, opts Options, log *zap.Logger) (*sharedPool, error) {
	p := &sharedPool{
		drv:       drv,
		url:       url,
		opts:      opts,
		log:       log,
		idleCh:    make(chan idleConn, opts.MaxSize),
		closeCh:   make(chan struct{}),
		drainedCh: make(chan struct{}),
		stopMaint: make(chan struct{}),
		maintDone: make(chan struct{}),
	}

	for i := uint32(0); i < opts.MinSize; i++ {
		if !p.tryGrow() {
			break
		}
		raw, err := p.open(ctx)
		if err != nil {
			p.forget()
			p.abortSeed(ctx)
			return nil, err
		}
		p.idleCh <- idleConn{raw: raw, since: time.Now()}
	}

	go p.maintain()
	return p, nil
}

// abortSeed tears down connections opened during a failed min-size seed.
func (p *sharedPool) abortSeed(ctx context.Context) {
	for {
		select {
		case entry := <-p.idleCh:
			entry.raw.conn.Close(ctx)
			p.size.Add(-1)
		default:
			return
		}
	}
}

// tryGrow reserves a size slot if the pool is below its cap.
func (p *sharedPool) tryGrow() bool {
	for {
		n := p.size.Load()
		if n >= int32(p.opts.MaxSize) {
			return false
		}
		if p.size.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// forget releases a reserved size slot without a connection to close.
func (p *sharedPool) forget() {
	p.size.Add(-1)
	p.maybeDrained()
}

func (p *sharedPool) maybeDrained() {
	if p.closed.Load() && p.size.Load() == 0 {
		p.drainedOnce.Do(func() { close(p.drainedCh) })
	}
}

// open dials a new connection against an already reserved size slot.
func (p *sharedPool) open(ctx context.Context) (*rawConn, error) {
	conn, err := p.drv.Open(ctx, p.url)
	if err != nil {
		return nil, err
	}
	raw := &rawConn{
		id:        uuid.New(),
		conn:      conn,
		createdAt: time.Now(),
	}
	p.log.Debug("opened connection", zap.String("conn_id", raw.id.String()))
	return raw, nil
}

// destroy closes a connection and gives up its size slot.
func (p *sharedPool) destroy(raw *rawConn) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := raw.conn.Close(ctx); err != nil {
		p.log.Debug("error closing connection",
			zap.String("conn_id", raw.id.String()),
			zap.Error(err))
	}
	p.forget()
}

// acquire hands out a connection, waiting at most ConnectTimeout.
func (p *sharedPool) acquire(ctx context.Context) (*rawConn, error) {
	deadline := time.Now().Add(p.opts.ConnectTimeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		if p.closed.Load() {
			return nil, ErrPoolClosed
		}

		// Fast path: an idle connection is already available.
		select {
		case entry := <-p.idleCh:
			if raw := p.checkout(ctx, entry); raw != nil {
				return raw, nil
			}
			continue
		default:
		}

		// Open path: room below the cap.
		if p.tryGrow() {
			raw, err := p.open(ctx)
			if err != nil {
				p.forget()
				return nil, err
			}
			return raw, nil
		}

		// Wait path: park until a release, shutdown or the deadline.
		select {
		case entry := <-p.idleCh:
			if raw := p.checkout(ctx, entry); raw != nil {
				return raw, nil
			}
		case <-p.closeCh:
			return nil, ErrPoolClosed
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrConnectTimeout
			}
			return nil, ctx.Err()
		}
	}
}

// tryAcquire pops an idle connection without waiting. A connection that
// fails validation is destroyed and nil is returned; the caller chose not to
// wait for a replacement.
func (p *sharedPool) tryAcquire() *rawConn {
	if p.closed.Load() {
		return nil
	}
	select {
	case entry := <-p.idleCh:
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		return p.checkout(ctx, entry)
	default:
		return nil
	}
}

// checkout validates an idle connection before handing it out. Invalid
// connections are destroyed and nil is returned.
func (p *sharedPool) checkout(ctx context.Context, entry idleConn) *rawConn {
	raw := entry.raw

	if p.closed.Load() {
		p.destroy(raw)
		return nil
	}
	if p.opts.MaxLifetime > 0 && time.Since(raw.createdAt) >= p.opts.MaxLifetime {
		p.log.Debug("discarding connection past max lifetime",
			zap.String("conn_id", raw.id.String()))
		p.destroy(raw)
		return nil
	}
	if p.opts.TestOnAcquire {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := raw.conn.Ping(pingCtx)
		cancel()
		if err != nil {
			p.log.Debug("discarding connection that failed ping",
				zap.String("conn_id", raw.id.String()),
				zap.Error(err))
			p.destroy(raw)
			return nil
		}
	}
	return raw
}

// release returns a leased connection to the idle queue. The queue capacity
// equals the cap on live connections, so the send must succeed; a full queue
// means the size accounting is broken.
func (p *sharedPool) release(raw *rawConn) {
	if p.closed.Load() {
		p.destroy(raw)
		return
	}
	select {
	case p.idleCh <- idleConn{raw: raw, since: time.Now()}:
	default:
		panic("pool: connection released into a full pool")
	}
}

// close shuts the pool down: no new connections, idle connections closed,
// and it does not return until every lease has come back or ctx is done.
func (p *sharedPool) close(ctx context.Context) error {
	if p.closed.CompareAndSwap(false, true) {
		close(p.closeCh)
	}
	p.maybeDrained()

	for {
		select {
		case entry := <-p.idleCh:
			p.destroy(entry.raw)
		case <-p.drainedCh:
			p.stopOnce.Do(func() { close(p.stopMaint) })
			select {
			case <-p.maintDone:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *sharedPool) numIdle() int {
	return len(p.idleCh)
}
