package xmppclient

import (
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/exavolt/xmpp-client/pkg/xmppcore"
	"github.com/exavolt/xmpp-client/pkg/xmppfilter"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticatedAnonymous
	StateAuthenticatedUser
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticatedAnonymous:
		return "authenticated-anonymous"
	case StateAuthenticatedUser:
		return "authenticated-user"
	}
	return "unknown"
}

// Connection is an XMPP client connection: it owns the lifecycle state
// machine, the outbound send path and the dispatch engine routing
// inbound stanzas to collectors and listeners. One Connection
// represents one logical session; Connect may be called again after a
// shutdown or a transport failure.
type Connection struct {
	config      Config
	transport   Transport
	clk         clock.Clock
	metrics     *coreMetrics
	dispatcher  *dispatcher
	reconnector *reconnector

	mu           sync.RWMutex
	state        State
	connectionID string
	user         xmppcore.JID
	anonymous    bool
	wasConnected bool

	listenersMutex sync.RWMutex
	connListeners  []ConnectionListener
}

// NewConnection wires a connection to its transport. The transport's
// inbound path is bound to the dispatch engine; the connection is left
// in the disconnected state.
func NewConnection(tr Transport, cfg Config) (*Connection, error) {
	if tr == nil {
		return nil, errors.New("xmppclient: transport is required")
	}
	cfg = cfg.withDefaults()
	c := &Connection{
		config:    cfg,
		transport: tr,
		clk:       cfg.Clock,
		metrics:   newCoreMetrics(cfg.Metrics),
	}
	c.dispatcher = newDispatcher(c.metrics)
	if cfg.AutomaticReconnect {
		c.reconnector = newReconnector(c, cfg)
	}
	tr.SetHandlers(c.dispatcher.deliver, c.connectionLost)
	notifyConnectionCreated(c)
	return c, nil
}

// Connect establishes the stream. Valid from the disconnected and
// connecting states. On success a fresh connection ID is assigned; when
// a previous session existed the reconnection-success notification is
// fired instead of the generic connected one.
func (c *Connection) Connect() error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected, StateConnecting:
	default:
		state := c.state
		c.mu.Unlock()
		return &IllegalStateError{Op: "connect", State: state}
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.transport.Connect(); err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return &ConnectionError{Cause: err}
	}

	id, err := generateID()
	if err != nil {
		c.transport.Close()
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return &ConnectionError{Cause: err}
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// A shutdown landed while the transport was connecting; the
		// shutdown wins.
		state := c.state
		c.mu.Unlock()
		c.transport.Close()
		return &IllegalStateError{Op: "connect", State: state}
	}
	c.state = StateConnected
	c.connectionID = id
	reconnected := c.wasConnected
	c.mu.Unlock()

	log.WithFields(logrus.Fields{"conn": id}).Info("Connected")
	if reconnected {
		c.notifyConnectionListeners(func(l ConnectionListener) { l.ReconnectionSuccessful() })
	} else {
		c.notifyConnectionListeners(func(l ConnectionListener) { l.Connected(c) })
	}
	return nil
}

// Login authenticates with the given credentials. Valid only from the
// connected, unauthenticated state. A credential rejection returns an
// AuthenticationError and leaves the connection connected.
func (c *Connection) Login(creds Credentials) error {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()
	if state != StateConnected {
		return &IllegalStateError{Op: "login", State: state}
	}

	if err := c.config.Authenticator.Authenticate(c.transport, creds); err != nil {
		return err
	}

	user, err := c.userJID(creds)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateConnected {
		// The connection was shut down, lost, or authenticated by
		// another caller while the exchange was in flight.
		state := c.state
		c.mu.Unlock()
		return &IllegalStateError{Op: "login", State: state}
	}
	c.user = user
	c.anonymous = false
	c.state = StateAuthenticatedUser
	id := c.connectionID
	c.mu.Unlock()

	log.WithFields(logrus.Fields{"conn": id, "jid": user}).Info("Authenticated")
	c.notifyConnectionListeners(func(l ConnectionListener) { l.Authenticated(c) })
	return nil
}

// LoginAnonymously authenticates without an account identity. Valid
// only from the connected, unauthenticated state.
func (c *Connection) LoginAnonymously() error {
	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		return &IllegalStateError{Op: "login-anonymously", State: state}
	}
	c.anonymous = true
	c.state = StateAuthenticatedAnonymous
	id := c.connectionID
	c.mu.Unlock()

	log.WithFields(logrus.Fields{"conn": id}).Info("Authenticated anonymously")
	c.notifyConnectionListeners(func(l ConnectionListener) { l.Authenticated(c) })
	return nil
}

func (c *Connection) userJID(creds Credentials) (xmppcore.JID, error) {
	var jid xmppcore.JID
	if strings.Contains(creds.Username, "@") {
		parsed, err := xmppcore.ParseJID(creds.Username)
		if err != nil {
			return jid, errors.Wrap(err, "invalid username")
		}
		jid = parsed
	} else {
		jid = xmppcore.JID{Local: creds.Username, Domain: c.config.Domain}
	}
	switch {
	case creds.Resource != "":
		jid.Resource = creds.Resource
	case jid.Resource != "":
		// Resource taken from the username JID.
	case c.config.Resource != "":
		jid.Resource = c.config.Resource
	default:
		jid.Resource = DefaultResource
	}
	return jid, nil
}

// Shutdown closes the connection from any state: pending collectors
// are cancelled, identity and authentication are cleared, and
// connection-closed listeners are notified. Stanza listener
// registrations are preserved for a later reconnect.
func (c *Connection) Shutdown() {
	if c.reconnector != nil {
		c.reconnector.stop()
	}

	c.mu.Lock()
	id := c.connectionID
	wasActive := c.state != StateDisconnected
	c.user = xmppcore.JID{}
	c.anonymous = false
	c.connectionID = ""
	c.state = StateDisconnected
	c.wasConnected = true
	c.mu.Unlock()

	c.dispatcher.shutdown()
	if wasActive {
		if err := c.transport.Close(); err != nil {
			log.WithFields(logrus.Fields{"conn": id}).
				Error("Error closing transport: ", err)
		}
		log.WithFields(logrus.Fields{"conn": id}).Info("Connection shut down")
	}
	c.notifyConnectionListeners(func(l ConnectionListener) { l.ConnectionClosed() })
}

// connectionLost is invoked by the transport when the stream fails
// unexpectedly. It mirrors Shutdown but fires the connection-lost
// notification and, when enabled, kicks the reconnection coordinator.
func (c *Connection) connectionLost(err error) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	id := c.connectionID
	c.user = xmppcore.JID{}
	c.anonymous = false
	c.connectionID = ""
	c.state = StateDisconnected
	c.wasConnected = true
	c.mu.Unlock()

	log.WithFields(logrus.Fields{"conn": id}).Warn("Connection lost: ", err)
	c.dispatcher.shutdown()
	c.notifyConnectionListeners(func(l ConnectionListener) { l.ConnectionLost(err) })
	if c.reconnector != nil {
		c.reconnector.connectionLost()
	}
}

// Send hands one top-level element to the transport. Each call is
// atomic with respect to other Send calls; there is no retry. A failure
// to enqueue is reported as a TransportError and is a signal for the
// caller to re-check the connection state.
func (c *Connection) Send(element interface{}) error {
	if element == nil {
		return errors.New("xmppclient: element is required")
	}
	if err := c.transport.Send(element); err != nil {
		return &TransportError{Cause: err}
	}
	c.metrics.incSent()
	return nil
}

// SendStanza sends a stanza, stamping a generated correlation ID onto
// stanzas that support one but were built without it.
func (c *Connection) SendStanza(st xmppcore.Stanza) error {
	if st == nil {
		return errors.New("xmppclient: stanza is required")
	}
	if err := c.ensureStanzaID(st); err != nil {
		return err
	}
	return c.Send(st)
}

type stanzaIDSetter interface {
	SetStanzaID(id string)
}

func (c *Connection) ensureStanzaID(st xmppcore.Stanza) error {
	if st.StanzaID() != "" {
		return nil
	}
	setter, ok := st.(stanzaIDSetter)
	if !ok {
		return nil
	}
	id, err := generateID()
	if err != nil {
		return errors.Wrap(err, "unable to generate stanza id")
	}
	setter.SetStanzaID(id)
	return nil
}

// CreateCollector registers a collector with the default buffer
// capacity. The caller must release it with Cancel.
func (c *Connection) CreateCollector(filter xmppfilter.Filter) *Collector {
	return c.dispatcher.addCollector(filter, DefaultCollectorCapacity, c.clk)
}

// CreateCollectorCapacity registers a collector whose bounded buffer
// holds up to capacity stanzas; when full, the oldest is evicted.
func (c *Connection) CreateCollectorCapacity(filter xmppfilter.Filter, capacity int) *Collector {
	return c.dispatcher.addCollector(filter, capacity, c.clk)
}

// SendAndCollect creates a collector on the stanza's correlation ID,
// then sends the stanza, so the reply cannot be missed even if it
// arrives before the caller blocks on NextResult. On send failure the
// collector is cancelled and nil is returned with the error.
func (c *Connection) SendAndCollect(st xmppcore.Stanza) (*Collector, error) {
	if st == nil {
		return nil, errors.New("xmppclient: stanza is required")
	}
	if err := c.ensureStanzaID(st); err != nil {
		return nil, err
	}
	if st.StanzaID() == "" {
		return nil, errors.New("xmppclient: stanza type carries no correlation id")
	}
	collector := c.CreateCollector(xmppfilter.StanzaID(st.StanzaID()))
	if err := c.Send(st); err != nil {
		collector.Cancel()
		return nil, err
	}
	return collector, nil
}

// AddStanzaListener registers a durable callback invoked for every
// inbound stanza matching the filter; a nil filter matches everything.
// The registration survives reconnects until the returned remove
// function is called.
func (c *Connection) AddStanzaListener(filter xmppfilter.Filter, callback StanzaCallback) (remove func()) {
	return c.dispatcher.addListener(filter, callback)
}

func (c *Connection) AddConnectionListener(l ConnectionListener) {
	if l == nil {
		return
	}
	c.listenersMutex.Lock()
	c.connListeners = append(c.connListeners, l)
	c.listenersMutex.Unlock()
}

func (c *Connection) RemoveConnectionListener(l ConnectionListener) {
	c.listenersMutex.Lock()
	for i, registered := range c.connListeners {
		if registered == l {
			c.connListeners = append(c.connListeners[:i], c.connListeners[i+1:]...)
			break
		}
	}
	c.listenersMutex.Unlock()
}

func (c *Connection) notifyConnectionListeners(fn func(ConnectionListener)) {
	c.listenersMutex.RLock()
	listeners := make([]ConnectionListener, len(c.connListeners))
	copy(listeners, c.connListeners)
	c.listenersMutex.RUnlock()
	for _, l := range listeners {
		c.invokeConnectionListener(fn, l)
	}
}

func (c *Connection) invokeConnectionListener(fn func(ConnectionListener), l ConnectionListener) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Got panic from connection listener: %#v", r)
		}
	}()
	fn(l)
}

// ConnectionID returns the current connection's opaque identifier, or
// an empty string while disconnected. An ID cleared while connected is
// lazily regenerated; that is a defensive path, not the primary one.
func (c *Connection) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateDisconnected, StateConnecting:
		return ""
	}
	if c.connectionID == "" {
		if id, err := generateID(); err == nil {
			c.connectionID = id
		}
	}
	return c.connectionID
}

// User returns the authenticated identity, or the zero JID before
// authentication.
func (c *Connection) User() xmppcore.JID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.state {
	case StateConnected, StateAuthenticatedAnonymous, StateAuthenticatedUser:
		return true
	}
	return false
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.state {
	case StateAuthenticatedAnonymous, StateAuthenticatedUser:
		return true
	}
	return false
}

func (c *Connection) IsAnonymous() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.anonymous
}

func (c *Connection) IsSecure() bool { return c.transport.Secure() }

func (c *Connection) IsCompressed() bool { return c.transport.Compressed() }
