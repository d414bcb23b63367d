package xmppclient

import (
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/exavolt/xmpp-client/pkg/xmppcore"
	"github.com/exavolt/xmpp-client/pkg/xmppfilter"
)

// StanzaCallback is invoked for every inbound stanza matching a
// listener's filter. Callbacks run off the dispatch path, on a single
// notifier goroutine, so a blocking callback delays later listener
// notifications but never collector wake-ups or inbound processing.
type StanzaCallback func(st xmppcore.Stanza)

type stanzaListener struct {
	filter   xmppfilter.Filter
	callback StanzaCallback
}

// listenerNotifyQueueSize bounds the queue between the dispatch entry
// point and the listener notifier goroutine. When listeners cannot keep
// up, notifications are dropped rather than stalling the stream.
const listenerNotifyQueueSize = 256

type listenerNotification struct {
	gen       uint64
	stanza    xmppcore.Stanza
	listeners []*stanzaListener
}

// dispatcher is the single point through which every inbound stanza
// passes. The transport guarantees deliver is never invoked
// concurrently for the same connection; the dispatcher fans out from
// there. Listener registrations survive reconnection: only the
// generation counter and the collector set are reset on shutdown.
type dispatcher struct {
	metrics *coreMetrics

	mu         sync.RWMutex
	gen        uint64
	collectors map[*Collector]struct{}
	listeners  []*stanzaListener

	notifyCh chan listenerNotification
}

func newDispatcher(metrics *coreMetrics) *dispatcher {
	d := &dispatcher{
		metrics:    metrics,
		collectors: make(map[*Collector]struct{}),
		notifyCh:   make(chan listenerNotification, listenerNotifyQueueSize),
	}
	go d.notifyLoop()
	return d
}

// deliver processes one inbound stanza: snapshot the registries, push
// into every matching collector, then hand the listener snapshot to the
// notifier goroutine. The snapshot makes delivery of this stanza
// independent of registrations added or removed mid-dispatch, and
// guarantees collector delivery precedes listener delivery.
func (d *dispatcher) deliver(st xmppcore.Stanza) {
	d.metrics.incReceived()

	d.mu.RLock()
	gen := d.gen
	collectors := make([]*Collector, 0, len(d.collectors))
	for c := range d.collectors {
		collectors = append(collectors, c)
	}
	listeners := make([]*stanzaListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, c := range collectors {
		if c.filter != nil && !c.filter(st) {
			continue
		}
		delivered, evicted := c.deliver(st)
		if evicted {
			d.metrics.incCollectorEviction()
		}
		if delivered {
			d.metrics.incCollectorMatch()
		}
	}

	if len(listeners) == 0 {
		return
	}
	select {
	case d.notifyCh <- listenerNotification{gen: gen, stanza: st, listeners: listeners}:
	default:
		d.metrics.incNotificationDropped()
		log.Warn("Listener notification queue is full; dropping notification")
	}
}

func (d *dispatcher) notifyLoop() {
	for n := range d.notifyCh {
		d.mu.RLock()
		current := d.gen
		d.mu.RUnlock()
		if n.gen != current {
			// Queued before a shutdown; dropped, not replayed.
			continue
		}
		for _, l := range n.listeners {
			if l.filter != nil && !l.filter(n.stanza) {
				continue
			}
			d.invokeListener(l, n.stanza)
		}
	}
}

func (d *dispatcher) invokeListener(l *stanzaListener, st xmppcore.Stanza) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Got panic from stanza listener: %#v", r)
		}
	}()
	d.metrics.incListenerInvocation()
	l.callback(st)
}

func (d *dispatcher) addCollector(filter xmppfilter.Filter, capacity int, clk clock.Clock) *Collector {
	c := newCollector(d, filter, capacity, clk)
	d.mu.Lock()
	d.collectors[c] = struct{}{}
	d.mu.Unlock()
	return c
}

func (d *dispatcher) removeCollector(c *Collector) {
	d.mu.Lock()
	delete(d.collectors, c)
	d.mu.Unlock()
}

// addListener registers a durable filter/callback pair. Registration
// order determines notification order. The returned function removes
// the registration; calling it more than once is harmless.
func (d *dispatcher) addListener(filter xmppfilter.Filter, callback StanzaCallback) (remove func()) {
	l := &stanzaListener{filter: filter, callback: callback}
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		for i, registered := range d.listeners {
			if registered == l {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				break
			}
		}
		d.mu.Unlock()
	}
}

// shutdown is the connection-shutdown barrier: every pending collector
// is cancelled and queued-but-undispatched listener notifications are
// invalidated. Listener registrations are preserved.
func (d *dispatcher) shutdown() {
	d.mu.Lock()
	d.gen++
	collectors := make([]*Collector, 0, len(d.collectors))
	for c := range d.collectors {
		collectors = append(collectors, c)
	}
	d.collectors = make(map[*Collector]struct{})
	d.mu.Unlock()

	for _, c := range collectors {
		c.cancel()
	}
}
