package xmppclient

import (
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exavolt/xmpp-client/pkg/xmppcore"
	"github.com/exavolt/xmpp-client/pkg/xmppfilter"
)

// connRecorder counts connection lifecycle notifications.
type connRecorder struct {
	mu            sync.Mutex
	connected     int
	authenticated int
	closed        int
	lost          int
	reconnected   int
}

func (r *connRecorder) Connected(*Connection)     { r.mu.Lock(); r.connected++; r.mu.Unlock() }
func (r *connRecorder) Authenticated(*Connection) { r.mu.Lock(); r.authenticated++; r.mu.Unlock() }
func (r *connRecorder) ConnectionClosed()         { r.mu.Lock(); r.closed++; r.mu.Unlock() }
func (r *connRecorder) ConnectionLost(error)      { r.mu.Lock(); r.lost++; r.mu.Unlock() }
func (r *connRecorder) ReconnectionSuccessful()   { r.mu.Lock(); r.reconnected++; r.mu.Unlock() }

func (r *connRecorder) snapshot() connRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return connRecorder{
		connected:     r.connected,
		authenticated: r.authenticated,
		closed:        r.closed,
		lost:          r.lost,
		reconnected:   r.reconnected,
	}
}

func TestConnectTransitions(t *testing.T) {
	conn, _ := newTestConnection(t)

	assert.Equal(t, StateDisconnected, conn.State())
	assert.False(t, conn.IsConnected())
	assert.Equal(t, "", conn.ConnectionID())

	require.NoError(t, conn.Connect())
	defer conn.Shutdown()

	assert.Equal(t, StateConnected, conn.State())
	assert.True(t, conn.IsConnected())
	assert.False(t, conn.IsAuthenticated())
	assert.NotEqual(t, "", conn.ConnectionID())
}

func TestConnectFailureLeavesDisconnected(t *testing.T) {
	tr := NewMemoryTransportConfig(MemoryTransportConfig{
		ConnectErr: errors.New("connection refused"),
	})
	conn, err := NewConnection(tr, Config{Domain: "example.org"})
	require.NoError(t, err)

	err = conn.Connect()
	require.Error(t, err)
	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, StateDisconnected, conn.State())
	assert.Equal(t, "", conn.ConnectionID())
}

func TestConnectWhileConnectedIsIllegal(t *testing.T) {
	conn, _ := newConnectedConnection(t)
	defer conn.Shutdown()

	err := conn.Connect()
	var stateErr *IllegalStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, StateConnected, stateErr.State)
}

func TestConnectionIDRegeneratedPerConnect(t *testing.T) {
	conn, _ := newConnectedConnection(t)
	first := conn.ConnectionID()
	require.NotEqual(t, "", first)

	conn.Shutdown()
	assert.Equal(t, "", conn.ConnectionID())

	require.NoError(t, conn.Connect())
	defer conn.Shutdown()
	second := conn.ConnectionID()
	assert.NotEqual(t, "", second)
	assert.NotEqual(t, first, second)
}

func TestLogin(t *testing.T) {
	conn, tr := newConnectedConnection(t)
	defer conn.Shutdown()

	rec := &connRecorder{}
	conn.AddConnectionListener(rec)

	require.NoError(t, conn.Login(Credentials{Username: "alice", Password: "secret"}))

	assert.Equal(t, StateAuthenticatedUser, conn.State())
	assert.True(t, conn.IsAuthenticated())
	assert.False(t, conn.IsAnonymous())
	assert.Equal(t, "alice@example.org/"+DefaultResource, conn.User().Full())
	assert.Equal(t, 1, rec.snapshot().authenticated)

	// The PLAIN exchange went through the transport.
	sent := tr.DrainNext(time.Second)
	require.NotNil(t, sent)
	auth, ok := sent.(*xmppcore.SASLAuth)
	require.True(t, ok)
	assert.Equal(t, "PLAIN", auth.Mechanism)
	payload, err := base64.StdEncoding.DecodeString(auth.CharData)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x00alice\x00secret"), payload)
}

func TestLoginWithExplicitResource(t *testing.T) {
	conn, _ := newConnectedConnection(t)
	defer conn.Shutdown()

	require.NoError(t, conn.Login(Credentials{
		Username: "alice@example.org",
		Password: "secret",
		Resource: "mobile",
	}))
	assert.Equal(t, "alice@example.org/mobile", conn.User().Full())
}

func TestLoginWhileDisconnectedIsIllegal(t *testing.T) {
	conn, _ := newTestConnection(t)

	err := conn.Login(Credentials{Username: "alice", Password: "secret"})
	var stateErr *IllegalStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, StateDisconnected, stateErr.State)
}

func TestLoginWhileAuthenticatedIsIllegal(t *testing.T) {
	conn, _ := newConnectedConnection(t)
	defer conn.Shutdown()

	require.NoError(t, conn.Login(Credentials{Username: "alice", Password: "secret"}))
	err := conn.Login(Credentials{Username: "alice", Password: "secret"})
	var stateErr *IllegalStateError
	require.True(t, errors.As(err, &stateErr))
}

func TestLoginRejectionKeepsConnected(t *testing.T) {
	tr := NewMemoryTransportConfig(MemoryTransportConfig{
		AuthVerifier: rejectAllVerifier{},
	})
	conn, err := NewConnection(tr, Config{Domain: "example.org"})
	require.NoError(t, err)
	require.NoError(t, conn.Connect())
	defer conn.Shutdown()

	err = conn.Login(Credentials{Username: "alice", Password: "wrong"})
	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "not-authorized", authErr.Condition)

	// Rejection leaves the connection connected, not disconnected.
	assert.Equal(t, StateConnected, conn.State())
	assert.True(t, conn.IsConnected())
	assert.False(t, conn.IsAuthenticated())
}

type rejectAllVerifier struct{}

func (rejectAllVerifier) VerifySASLPlainAuth(username, password []byte) (bool, error) {
	return false, nil
}

// gateAuthenticator blocks the authentication exchange until released,
// so tests can interleave lifecycle calls with an in-flight login.
type gateAuthenticator struct {
	entered chan struct{}
	release chan struct{}
}

func newGateAuthenticator(capacity int) *gateAuthenticator {
	return &gateAuthenticator{
		entered: make(chan struct{}, capacity),
		release: make(chan struct{}),
	}
}

func (a *gateAuthenticator) Authenticate(Transport, Credentials) error {
	a.entered <- struct{}{}
	<-a.release
	return nil
}

func TestShutdownDuringLoginWins(t *testing.T) {
	auth := newGateAuthenticator(1)
	tr := NewMemoryTransport()
	conn, err := NewConnection(tr, Config{Domain: "example.org", Authenticator: auth})
	require.NoError(t, err)
	require.NoError(t, conn.Connect())

	loginErr := make(chan error, 1)
	go func() {
		loginErr <- conn.Login(Credentials{Username: "alice", Password: "secret"})
	}()
	<-auth.entered

	conn.Shutdown()
	close(auth.release)

	select {
	case err := <-loginErr:
		var stateErr *IllegalStateError
		require.True(t, errors.As(err, &stateErr))
	case <-time.After(time.Second):
		t.Fatal("login never returned")
	}
	assert.Equal(t, StateDisconnected, conn.State())
	assert.False(t, conn.IsConnected())
	assert.False(t, conn.IsAuthenticated())
	assert.True(t, conn.User().IsEmpty())
}

func TestConcurrentLoginsAdmitOne(t *testing.T) {
	auth := newGateAuthenticator(2)
	tr := NewMemoryTransport()
	conn, err := NewConnection(tr, Config{Domain: "example.org", Authenticator: auth})
	require.NoError(t, err)
	require.NoError(t, conn.Connect())
	defer conn.Shutdown()

	loginErrs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			loginErrs <- conn.Login(Credentials{Username: "alice", Password: "secret"})
		}()
	}
	<-auth.entered
	<-auth.entered
	close(auth.release)

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		select {
		case err := <-loginErrs:
			if err == nil {
				succeeded++
				continue
			}
			var stateErr *IllegalStateError
			require.True(t, errors.As(err, &stateErr))
			rejected++
		case <-time.After(time.Second):
			t.Fatal("login never returned")
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, StateAuthenticatedUser, conn.State())
}

// gateConnectTransport blocks the transport connect until released.
type gateConnectTransport struct {
	*MemoryTransport
	entered chan struct{}
	release chan struct{}
}

func (t *gateConnectTransport) Connect() error {
	t.entered <- struct{}{}
	<-t.release
	return t.MemoryTransport.Connect()
}

func TestShutdownDuringConnectWins(t *testing.T) {
	tr := &gateConnectTransport{
		MemoryTransport: NewMemoryTransport(),
		entered:         make(chan struct{}, 1),
		release:         make(chan struct{}),
	}
	conn, err := NewConnection(tr, Config{Domain: "example.org"})
	require.NoError(t, err)

	connectErr := make(chan error, 1)
	go func() { connectErr <- conn.Connect() }()
	<-tr.entered

	conn.Shutdown()
	close(tr.release)

	select {
	case err := <-connectErr:
		var stateErr *IllegalStateError
		require.True(t, errors.As(err, &stateErr))
	case <-time.After(time.Second):
		t.Fatal("connect never returned")
	}
	assert.Equal(t, StateDisconnected, conn.State())
	assert.False(t, conn.IsConnected())
	assert.Equal(t, "", conn.ConnectionID())
}

func TestLoginAnonymously(t *testing.T) {
	conn, _ := newConnectedConnection(t)
	defer conn.Shutdown()

	require.NoError(t, conn.LoginAnonymously())
	assert.Equal(t, StateAuthenticatedAnonymous, conn.State())
	assert.True(t, conn.IsAuthenticated())
	assert.True(t, conn.IsAnonymous())
}

func TestLoginAnonymouslyWhileAuthenticatedIsIllegal(t *testing.T) {
	conn, _ := newConnectedConnection(t)
	defer conn.Shutdown()

	require.NoError(t, conn.LoginAnonymously())
	err := conn.LoginAnonymously()
	var stateErr *IllegalStateError
	require.True(t, errors.As(err, &stateErr))
}

func TestLoginAnonymouslyWhileDisconnectedIsIllegal(t *testing.T) {
	conn, _ := newTestConnection(t)

	err := conn.LoginAnonymously()
	var stateErr *IllegalStateError
	require.True(t, errors.As(err, &stateErr))
}

func TestShutdownClearsIdentity(t *testing.T) {
	conn, _ := newConnectedConnection(t)
	rec := &connRecorder{}
	conn.AddConnectionListener(rec)

	require.NoError(t, conn.Login(Credentials{Username: "alice", Password: "secret"}))
	conn.Shutdown()

	assert.Equal(t, StateDisconnected, conn.State())
	assert.False(t, conn.IsConnected())
	assert.False(t, conn.IsAuthenticated())
	assert.False(t, conn.IsAnonymous())
	assert.True(t, conn.User().IsEmpty())
	assert.Equal(t, "", conn.ConnectionID())
	assert.Equal(t, 1, rec.snapshot().closed)
}

func TestSendDeliversToTransport(t *testing.T) {
	conn, tr := newConnectedConnection(t)
	defer conn.Shutdown()

	require.NoError(t, conn.Send(&xmppcore.Ping{}))
	sent := tr.DrainNext(time.Second)
	require.NotNil(t, sent)
	_, ok := sent.(*xmppcore.Ping)
	assert.True(t, ok)
}

func TestSendFailureIsTransportError(t *testing.T) {
	conn, _ := newTestConnection(t)

	// Not connected; the transport rejects the element.
	err := conn.Send(&xmppcore.Ping{})
	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, StateDisconnected, conn.State())
}

func TestSendStanzaStampsID(t *testing.T) {
	conn, tr := newConnectedConnection(t)
	defer conn.Shutdown()

	iq := &xmppcore.ClientIQ{Type: xmppcore.IQTypeGet}
	require.NoError(t, conn.SendStanza(iq))
	assert.NotEqual(t, "", iq.ID)

	sent := tr.DrainNext(time.Second)
	require.NotNil(t, sent)
	assert.Equal(t, iq, sent)
}

func TestSendStanzaKeepsExplicitID(t *testing.T) {
	conn, _ := newConnectedConnection(t)
	defer conn.Shutdown()

	iq := &xmppcore.ClientIQ{ID: "keep-me", Type: xmppcore.IQTypeGet}
	require.NoError(t, conn.SendStanza(iq))
	assert.Equal(t, "keep-me", iq.ID)
}

// The round-trip scenario: a collector created before the send
// receives exactly the correlated reply.
func TestRequestResponseRoundTrip(t *testing.T) {
	conn, tr := newConnectedConnection(t)
	defer conn.Shutdown()

	request := &xmppcore.ClientIQ{ID: "r1", Type: xmppcore.IQTypeGet}
	collector := conn.CreateCollector(
		xmppfilter.And(xmppfilter.StanzaID("r1"), xmppfilter.IQReply()))
	defer collector.Cancel()
	require.NoError(t, conn.SendStanza(request))

	sent := tr.DrainNext(time.Second)
	require.Equal(t, request, sent)

	tr.InjectInbound(iqResult("unrelated"))
	tr.InjectInbound(iqResult("r1"))

	st, err := collector.NextResult(time.Second)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "r1", st.StanzaID())

	st, err = collector.NextResult(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestSendAndCollect(t *testing.T) {
	conn, tr := newConnectedConnection(t)
	defer conn.Shutdown()

	collector, err := conn.SendAndCollect(&xmppcore.ClientIQ{Type: xmppcore.IQTypeGet})
	require.NoError(t, err)
	defer collector.Cancel()

	sent := tr.DrainNext(time.Second)
	require.NotNil(t, sent)
	request := sent.(*xmppcore.ClientIQ)
	require.NotEqual(t, "", request.ID)

	tr.InjectInbound(iqResult(request.ID))
	st, err := collector.NextResult(time.Second)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, request.ID, st.StanzaID())
}

func TestSecureAndCompressedReflectTransport(t *testing.T) {
	tr := NewMemoryTransportConfig(MemoryTransportConfig{
		Secure:     true,
		Compressed: true,
	})
	conn, err := NewConnection(tr, Config{Domain: "example.org"})
	require.NoError(t, err)
	assert.True(t, conn.IsSecure())
	assert.True(t, conn.IsCompressed())

	conn2, _ := newTestConnection(t)
	assert.False(t, conn2.IsSecure())
	assert.False(t, conn2.IsCompressed())
}

func TestConnectionCreationListener(t *testing.T) {
	rec := &creationRecorder{}
	AddConnectionCreationListener(rec)
	defer RemoveConnectionCreationListener(rec)

	conn, _ := newTestConnection(t)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, conn, rec.last())
}

type creationRecorder struct {
	mu    sync.Mutex
	conns []*Connection
}

func (r *creationRecorder) ConnectionCreated(conn *Connection) {
	r.mu.Lock()
	r.conns = append(r.conns, conn)
	r.mu.Unlock()
}

func (r *creationRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *creationRecorder) last() *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.conns) == 0 {
		return nil
	}
	return r.conns[len(r.conns)-1]
}
