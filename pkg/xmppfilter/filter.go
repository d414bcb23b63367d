// Package xmppfilter provides predicates used to select inbound stanzas
// for delivery to collectors and listeners.
package xmppfilter

import (
	"github.com/exavolt/xmpp-client/pkg/xmppcore"
)

// Filter is a pure predicate over an inbound stanza. Filters must be
// side-effect free: a filter may be evaluated any number of times, from
// any goroutine, against the same stanza.
type Filter func(xmppcore.Stanza) bool

// Any matches every stanza.
func Any(xmppcore.Stanza) bool { return true }

func And(filters ...Filter) Filter {
	return func(st xmppcore.Stanza) bool {
		for _, f := range filters {
			if !f(st) {
				return false
			}
		}
		return true
	}
}

func Or(filters ...Filter) Filter {
	return func(st xmppcore.Stanza) bool {
		for _, f := range filters {
			if f(st) {
				return true
			}
		}
		return false
	}
}

func Not(f Filter) Filter {
	return func(st xmppcore.Stanza) bool {
		return !f(st)
	}
}

// StanzaID matches stanzas carrying the given correlation identifier.
// An empty id never matches; stanzas without an id are never correlated.
func StanzaID(id string) Filter {
	return func(st xmppcore.Stanza) bool {
		return id != "" && st.StanzaID() == id
	}
}

// IQ matches IQ stanzas.
func IQ() Filter {
	return func(st xmppcore.Stanza) bool {
		_, ok := st.(*xmppcore.ClientIQ)
		return ok
	}
}

// IQType matches IQ stanzas of the given type (any of xmppcore.IQType*).
func IQType(iqType string) Filter {
	return func(st xmppcore.Stanza) bool {
		iq, ok := st.(*xmppcore.ClientIQ)
		return ok && iq.Type == iqType
	}
}

// IQReply matches IQ stanzas of type result or error. Combined with
// StanzaID it selects the reply to a previously sent request.
func IQReply() Filter {
	return Or(IQType(xmppcore.IQTypeResult), IQType(xmppcore.IQTypeError))
}

// Message matches message stanzas.
func Message() Filter {
	return func(st xmppcore.Stanza) bool {
		_, ok := st.(*xmppcore.ClientMessage)
		return ok
	}
}

// Presence matches presence stanzas.
func Presence() Filter {
	return func(st xmppcore.Stanza) bool {
		_, ok := st.(*xmppcore.ClientPresence)
		return ok
	}
}

// FromBare matches stanzas whose 'from' attribute has the given bare JID.
func FromBare(jid xmppcore.JID) Filter {
	return func(st xmppcore.Stanza) bool {
		var from *xmppcore.JID
		switch s := st.(type) {
		case *xmppcore.ClientIQ:
			from = s.From
		case *xmppcore.ClientMessage:
			from = s.From
		case *xmppcore.ClientPresence:
			from = s.From
		}
		return from != nil && from.Bare() == jid.Bare()
	}
}
