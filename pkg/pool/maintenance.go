package pool

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const maxMaintInterval = time.Minute

// refillBackoff is how long the maintenance task sits out after a failed
// open before the next cycle may retry.
const refillBackoff = time.Second

// maintInterval picks the wake period: the tightest of idle timeout, max
// lifetime and one minute.
func (p *sharedPool) maintInterval() time.Duration {
	interval := maxMaintInterval
	if p.opts.IdleTimeout > 0 && p.opts.IdleTimeout < interval {
		interval = p.opts.IdleTimeout
	}
	if p.opts.MaxLifetime > 0 && p.opts.MaxLifetime < interval {
		interval = p.opts.MaxLifetime
	}
	return interval
}

// maintain is the pool's background task: it reaps stale idle connections
// and tops the pool back up to its minimum size.
func (p *sharedPool) maintain() {
	defer close(p.maintDone)

	ticker := time.NewTicker(p.maintInterval())
	defer ticker.Stop()

	for {
		select {
		case <-p.stopMaint:
			return
		case <-ticker.C:
			if p.closed.Load() {
				return
			}
			p.reap()
			p.refill()
		}
	}
}

// reap drains the idle queue, destroys expired entries and puts survivors
// back in their original order.
func (p *sharedPool) reap() {
	var keep []idleConn

	now := time.Now()
	for {
		select {
		case entry := <-p.idleCh:
			if p.expired(entry, now) {
				p.destroy(entry.raw)
			} else {
				keep = append(keep, entry)
			}
			continue
		default:
		}
		break
	}

	// Slots for survivors are still reserved in size, so the sends below
	// cannot overflow the queue.
	for _, entry := range keep {
		select {
		case p.idleCh <- entry:
		default:
			panic("pool: idle queue overflow during reap")
		}
	}
}

func (p *sharedPool) expired(entry idleConn, now time.Time) bool {
	if p.closed.Load() {
		return true
	}
	if p.opts.IdleTimeout > 0 && now.Sub(entry.since) >= p.opts.IdleTimeout {
		return true
	}
	if p.opts.MaxLifetime > 0 && now.Sub(entry.raw.createdAt) >= p.opts.MaxLifetime {
		return true
	}
	return false
}

// refill opens connections until the pool is back at its minimum size. An
// open failure aborts the cycle; the next tick retries.
func (p *sharedPool) refill() {
	for p.size.Load() < int32(p.opts.MinSize) && !p.closed.Load() {
		if !p.tryGrow() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.opts.ConnectTimeout)
		raw, err := p.open(ctx)
		cancel()
		if err != nil {
			p.forget()
			p.log.Warn("failed to refill pool to min size", zap.Error(err))
			time.Sleep(refillBackoff)
			return
		}

		select {
		case p.idleCh <- idleConn{raw: raw, since: time.Now()}:
		default:
			panic("pool: idle queue overflow during refill")
		}
	}
}
