// Package xmppping implements XEP-0199 application-level pings on top
// of the connection core: a manual Ping operation, a periodic keepalive
// loop, and an auto-responder for pings received from the peer.
package xmppping

import (
	"bytes"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/exavolt/xmpp-client/pkg/xmppclient"
	"github.com/exavolt/xmpp-client/pkg/xmppcore"
)

var log = logrus.StandardLogger()

const (
	DefaultInterval = 30 * time.Minute
	DefaultTimeout  = 30 * time.Second
)

var pingPayload = []byte("<ping xmlns='" + xmppcore.PingNS + "'/>")

type ManagerConfig struct {
	// Interval between keepalive pings once Start is called.
	Interval time.Duration
	// Timeout bounds the wait for each pong.
	Timeout time.Duration
	// To addresses pings to a specific entity. Nil pings the server.
	To *xmppcore.JID
	// PingFailed, when set, is invoked after a keepalive ping gets no
	// answer within the timeout.
	PingFailed func(err error)

	Clock clock.Clock
}

// Manager drives pings over one connection. Creating a manager also
// registers the auto-responder, which outlives Start/Stop cycles.
type Manager struct {
	conn            *xmppclient.Connection
	cfg             ManagerConfig
	clk             clock.Clock
	removeResponder func()

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func NewManager(conn *xmppclient.Connection, cfg ManagerConfig) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	m := &Manager{conn: conn, cfg: cfg, clk: clk}
	m.removeResponder = conn.AddStanzaListener(isPingRequest, m.respond)
	return m
}

// Close stops the keepalive loop and unregisters the auto-responder.
// The manager must not be used afterwards.
func (m *Manager) Close() {
	m.Stop()
	m.removeResponder()
}

// Ping sends one ping and waits for the pong. Any answer correlated to
// the ping counts, including an error reply: either way the stream is
// demonstrably alive.
func (m *Manager) Ping(timeout time.Duration) error {
	iq := &xmppcore.ClientIQ{
		Type:    xmppcore.IQTypeGet,
		To:      m.cfg.To,
		Payload: pingPayload,
	}
	collector, err := m.conn.SendAndCollect(iq)
	if err != nil {
		return err
	}
	defer collector.Cancel()

	st, err := collector.NextResult(timeout)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.Errorf("no pong within %s", timeout)
	}
	return nil
}

// Start launches the periodic keepalive loop. A second Start without an
// intervening Stop is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()
	go m.run(stopCh)
}

func (m *Manager) Stop() {
	m.mu.Lock()
	if m.running {
		close(m.stopCh)
		m.running = false
	}
	m.mu.Unlock()
}

func (m *Manager) run(stopCh chan struct{}) {
	for {
		timer := m.clk.Timer(m.cfg.Interval)
		select {
		case <-timer.C:
		case <-stopCh:
			timer.Stop()
			return
		}
		if !m.conn.IsConnected() {
			continue
		}
		if err := m.Ping(m.cfg.Timeout); err != nil {
			log.Warn("Keepalive ping failed: ", err)
			if m.cfg.PingFailed != nil {
				m.cfg.PingFailed(err)
			}
		}
	}
}

func isPingRequest(st xmppcore.Stanza) bool {
	iq, ok := st.(*xmppcore.ClientIQ)
	if !ok || iq.Type != xmppcore.IQTypeGet {
		return false
	}
	return bytes.Contains(iq.Payload, []byte(xmppcore.PingNS))
}

func (m *Manager) respond(st xmppcore.Stanza) {
	iq := st.(*xmppcore.ClientIQ)
	pong := &xmppcore.ClientIQ{
		ID:   iq.ID,
		Type: xmppcore.IQTypeResult,
		To:   iq.From,
	}
	if err := m.conn.Send(pong); err != nil {
		log.WithFields(logrus.Fields{"id": iq.ID}).
			Warn("Unable to answer ping: ", err)
	}
}
