package xmppclient

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/exavolt/xmpp-client/pkg/xmppcore"
	"github.com/exavolt/xmpp-client/pkg/xmppfilter"
)

// DefaultCollectorCapacity is the buffer size of collectors created
// without an explicit capacity. Request/response usage needs exactly
// one slot.
const DefaultCollectorCapacity = 1

// Collector is a single-use, filter-guarded rendezvous point. The
// caller creates it before sending a request stanza, then blocks on
// NextResult to receive the matching reply. Collectors must be
// released with Cancel when no longer needed; a connection shutdown
// cancels all pending collectors.
type Collector struct {
	dispatcher *dispatcher
	filter     xmppfilter.Filter
	clk        clock.Clock
	createdAt  time.Time

	buf        chan xmppcore.Stanza
	done       chan struct{}
	cancelOnce sync.Once
}

func newCollector(d *dispatcher, filter xmppfilter.Filter, capacity int, clk clock.Clock) *Collector {
	if capacity < 1 {
		capacity = DefaultCollectorCapacity
	}
	return &Collector{
		dispatcher: d,
		filter:     filter,
		clk:        clk,
		createdAt:  clk.Now(),
		buf:        make(chan xmppcore.Stanza, capacity),
		done:       make(chan struct{}),
	}
}

// deliver pushes a matching stanza into the buffer, evicting the
// oldest entry when full. It is only ever called from the dispatch
// entry point, which the transport serializes, so the evict-retry loop
// cannot race another producer. A cancelled collector drops the stanza.
func (c *Collector) deliver(st xmppcore.Stanza) (delivered, evicted bool) {
	select {
	case <-c.done:
		return false, false
	default:
	}
	for {
		select {
		case c.buf <- st:
			return true, evicted
		default:
		}
		select {
		case <-c.buf:
			evicted = true
		default:
		}
	}
}

// NextResult blocks until a stanza matching the collector's filter
// arrives, the timeout elapses, or the collector is cancelled. A
// timeout is a normal outcome and returns (nil, nil); cancellation
// returns ErrCollectorCancelled. Already-buffered stanzas are returned
// immediately, even after cancellation was initiated elsewhere.
func (c *Collector) NextResult(timeout time.Duration) (xmppcore.Stanza, error) {
	select {
	case st := <-c.buf:
		return st, nil
	default:
	}
	if timeout <= 0 {
		select {
		case <-c.done:
			return nil, ErrCollectorCancelled
		default:
			return nil, nil
		}
	}

	timer := c.clk.Timer(timeout)
	defer timer.Stop()
	select {
	case st := <-c.buf:
		return st, nil
	case <-c.done:
		return nil, ErrCollectorCancelled
	case <-timer.C:
		return nil, nil
	}
}

// Cancel releases the collector: it stops receiving stanzas and every
// blocked NextResult returns ErrCollectorCancelled. Idempotent.
func (c *Collector) Cancel() {
	c.cancel()
	c.dispatcher.removeCollector(c)
}

// cancel resolves waiters without touching the dispatcher registry;
// the dispatcher uses it during shutdown while holding its own lock
// bookkeeping.
func (c *Collector) cancel() {
	c.cancelOnce.Do(func() {
		close(c.done)
	})
}

func (c *Collector) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// CreatedAt returns the collector's creation timestamp.
func (c *Collector) CreatedAt() time.Time { return c.createdAt }
