// Package xmppclient implements the connection core of an XMPP client:
// the connection lifecycle state machine, the outbound send path and the
// stanza dispatch engine that routes inbound stanzas to registered
// listeners and to collectors blocking on a correlated reply.
//
// The wire transport is a collaborator behind the Transport interface;
// MemoryTransport is the in-memory implementation used for testing,
// TCPTransport and WebSocketTransport speak RFC 6120 / RFC 7395.
package xmppclient

import (
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()
