package xmppclient

import (
	"github.com/prometheus/client_golang/prometheus"
)

// coreMetrics holds Prometheus metrics for the dispatch engine and the
// send path. A nil *coreMetrics disables collection; every method is
// safe to call on a nil receiver.
type coreMetrics struct {
	received             prometheus.Counter
	sent                 prometheus.Counter
	collectorMatches     prometheus.Counter
	collectorEvictions   prometheus.Counter
	listenerInvocations  prometheus.Counter
	notificationsDropped prometheus.Counter
}

func newCoreMetrics(registerer prometheus.Registerer) *coreMetrics {
	if registerer == nil {
		return nil // Metrics disabled
	}
	m := &coreMetrics{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmppclient",
			Subsystem: "dispatch",
			Name:      "stanzas_received_total",
			Help:      "Total inbound stanzas delivered to the dispatch engine",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmppclient",
			Subsystem: "connection",
			Name:      "elements_sent_total",
			Help:      "Total elements handed to the transport send path",
		}),
		collectorMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmppclient",
			Subsystem: "dispatch",
			Name:      "collector_matches_total",
			Help:      "Total stanzas delivered into collector buffers",
		}),
		collectorEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmppclient",
			Subsystem: "dispatch",
			Name:      "collector_evictions_total",
			Help:      "Total stanzas evicted from full collector buffers",
		}),
		listenerInvocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmppclient",
			Subsystem: "dispatch",
			Name:      "listener_invocations_total",
			Help:      "Total stanza listener callback invocations",
		}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmppclient",
			Subsystem: "dispatch",
			Name:      "listener_notifications_dropped_total",
			Help:      "Total stanzas dropped because the listener notification queue was full",
		}),
	}
	registerer.MustRegister(
		m.received,
		m.sent,
		m.collectorMatches,
		m.collectorEvictions,
		m.listenerInvocations,
		m.notificationsDropped,
	)
	return m
}

func (m *coreMetrics) incReceived() {
	if m != nil {
		m.received.Inc()
	}
}

func (m *coreMetrics) incSent() {
	if m != nil {
		m.sent.Inc()
	}
}

func (m *coreMetrics) incCollectorMatch() {
	if m != nil {
		m.collectorMatches.Inc()
	}
}

func (m *coreMetrics) incCollectorEviction() {
	if m != nil {
		m.collectorEvictions.Inc()
	}
}

func (m *coreMetrics) incListenerInvocation() {
	if m != nil {
		m.listenerInvocations.Inc()
	}
}

func (m *coreMetrics) incNotificationDropped() {
	if m != nil {
		m.notificationsDropped.Inc()
	}
}
