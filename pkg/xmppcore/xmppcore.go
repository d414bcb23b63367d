// Package xmppcore contains all things required by XMPP Core (RFC 6120)
// as seen from the client side: addresses, stanzas, stream-level elements
// and the negotiation vocabulary.
package xmppcore

const (
	StreamsNS       = "urn:ietf:params:xml:ns:xmpp-streams"
	JabberStreamsNS = "http://etherx.jabber.org/streams"
	JabberClientNS  = "jabber:client"
)
