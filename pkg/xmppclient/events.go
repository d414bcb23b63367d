package xmppclient

import (
	"sync"
)

// ConnectionListener receives connection lifecycle notifications.
// Callbacks must not assume they run on any particular goroutine.
type ConnectionListener interface {
	// Connected is fired after the first successful connect of a
	// session. Reconnects fire ReconnectionSuccessful instead.
	Connected(conn *Connection)
	// Authenticated is fired after a successful login, anonymous or not.
	Authenticated(conn *Connection)
	// ConnectionClosed is fired when the caller shuts the connection down.
	ConnectionClosed()
	// ConnectionLost is fired when the transport fails unexpectedly.
	ConnectionLost(err error)
	// ReconnectionSuccessful is fired when a connection is established
	// after a previous session existed, so callers can replay
	// subscriptions without treating it as a first connect.
	ReconnectionSuccessful()
}

// NopConnectionListener implements ConnectionListener with no-ops.
// Embed it to implement a subset of the callbacks.
type NopConnectionListener struct{}

func (NopConnectionListener) Connected(*Connection)     {}
func (NopConnectionListener) Authenticated(*Connection) {}
func (NopConnectionListener) ConnectionClosed()         {}
func (NopConnectionListener) ConnectionLost(error)      {}
func (NopConnectionListener) ReconnectionSuccessful()   {}

// ConnectionCreationListener is notified of every connection created in
// this process. Registration is process-wide and append-only in spirit:
// it is expected at program start, removal is rare.
type ConnectionCreationListener interface {
	ConnectionCreated(conn *Connection)
}

var (
	creationListenersMutex sync.RWMutex
	creationListeners      []ConnectionCreationListener
)

func AddConnectionCreationListener(l ConnectionCreationListener) {
	if l == nil {
		return
	}
	creationListenersMutex.Lock()
	creationListeners = append(creationListeners, l)
	creationListenersMutex.Unlock()
}

func RemoveConnectionCreationListener(l ConnectionCreationListener) {
	creationListenersMutex.Lock()
	for i, registered := range creationListeners {
		if registered == l {
			creationListeners = append(creationListeners[:i], creationListeners[i+1:]...)
			break
		}
	}
	creationListenersMutex.Unlock()
}

func notifyConnectionCreated(conn *Connection) {
	creationListenersMutex.RLock()
	listeners := make([]ConnectionCreationListener, len(creationListeners))
	copy(listeners, creationListeners)
	creationListenersMutex.RUnlock()
	for _, l := range listeners {
		l.ConnectionCreated(conn)
	}
}
