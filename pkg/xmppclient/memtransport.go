package xmppclient

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/exavolt/xmpp-client/pkg/xmppcore"
)

// memSentQueueCapacity bounds the FIFO of sent elements held for test
// inspection.
const memSentQueueCapacity = 1024

type MemoryTransportConfig struct {
	Secure     bool
	Compressed bool

	// ConnectErr, when set, makes Connect fail with this error.
	ConnectErr error

	// AuthVerifier verifies PLAIN credentials during login. Nil
	// accepts any credentials.
	AuthVerifier SASLPlainAuthVerifier

	Clock clock.Clock
}

// MemoryTransport is an in-memory Transport used to exercise the
// connection core without a network. Elements passed to Send are
// buffered in a FIFO retrievable with DrainNext; inbound stanzas are
// injected with InjectInbound, which synchronously drives the dispatch
// engine.
type MemoryTransport struct {
	clk  clock.Clock
	sent chan interface{}

	mu         sync.Mutex
	cfg        MemoryTransportConfig
	connected  bool
	deliverFn  func(xmppcore.Stanza)
	lostFn     func(error)
}

func NewMemoryTransport() *MemoryTransport {
	return NewMemoryTransportConfig(MemoryTransportConfig{})
}

func NewMemoryTransportConfig(cfg MemoryTransportConfig) *MemoryTransport {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryTransport{
		clk:  clk,
		cfg:  cfg,
		sent: make(chan interface{}, memSentQueueCapacity),
	}
}

func (t *MemoryTransport) SetHandlers(deliver func(xmppcore.Stanza), lost func(error)) {
	t.mu.Lock()
	t.deliverFn = deliver
	t.lostFn = lost
	t.mu.Unlock()
}

func (t *MemoryTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cfg.ConnectErr != nil {
		return t.cfg.ConnectErr
	}
	t.connected = true
	return nil
}

func (t *MemoryTransport) Send(element interface{}) error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return errors.New("memory transport is not connected")
	}
	select {
	case t.sent <- element:
		return nil
	default:
		return errors.New("memory transport send queue is full")
	}
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	return nil
}

func (t *MemoryTransport) Secure() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg.Secure
}

func (t *MemoryTransport) Compressed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg.Compressed
}

func (t *MemoryTransport) VerifySASLPlainAuth(username, password []byte) (bool, error) {
	t.mu.Lock()
	verifier := t.cfg.AuthVerifier
	t.mu.Unlock()
	if verifier != nil {
		return verifier.VerifySASLPlainAuth(username, password)
	}
	return true, nil
}

// SetConnectErr changes the outcome of subsequent Connect calls, so a
// test can fail the first reconnect attempts and let a later one pass.
func (t *MemoryTransport) SetConnectErr(err error) {
	t.mu.Lock()
	t.cfg.ConnectErr = err
	t.mu.Unlock()
}

// DrainNext returns the oldest sent element that has not been returned
// by an earlier call, blocking up to the given timeout. It returns nil
// after the timeout; there is deliberately no unbounded variant.
func (t *MemoryTransport) DrainNext(timeout time.Duration) interface{} {
	select {
	case element := <-t.sent:
		return element
	default:
	}
	if timeout <= 0 {
		return nil
	}
	timer := t.clk.Timer(timeout)
	defer timer.Stop()
	select {
	case element := <-t.sent:
		return element
	case <-timer.C:
		return nil
	}
}

// SentCount returns the number of sent elements not yet drained.
func (t *MemoryTransport) SentCount() int {
	return len(t.sent)
}

// InjectInbound synchronously drives the dispatch engine with a
// received stanza, as the wire would.
func (t *MemoryTransport) InjectInbound(st xmppcore.Stanza) {
	t.mu.Lock()
	deliver := t.deliverFn
	t.mu.Unlock()
	if deliver == nil {
		log.Warn("Inbound stanza injected before the transport was wired; dropping")
		return
	}
	deliver(st)
}

// FailConnection simulates an unexpected transport failure: the
// transport drops to disconnected and the connection-lost signal fires.
func (t *MemoryTransport) FailConnection(err error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return
	}
	t.connected = false
	lost := t.lostFn
	t.mu.Unlock()
	if lost != nil {
		lost(err)
	}
}
