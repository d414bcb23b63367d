package xmppcore

import (
	"encoding/xml"
)

const StanzasNS = "urn:ietf:params:xml:ns:xmpp-stanzas"

// Stanza is an addressable top-level stream element which may carry a
// correlation identifier in its 'id' attribute. IQ, message and presence
// stanzas implement it; bare stream-level elements (SASL exchanges, stream
// errors, ...) do not.
type Stanza interface {
	// StanzaID returns the stanza's 'id' attribute, or an empty string
	// when the stanza carries none.
	StanzaID() string
}

// RFC 6120  8.3.2
const (
	StanzaErrorTypeAuth     = "auth"
	StanzaErrorTypeCancel   = "cancel"
	StanzaErrorTypeContinue = "continue"
	StanzaErrorTypeModify   = "modify"
	StanzaErrorTypeWait     = "wait"
)

// RFC 6120  8.3.2
type StanzaError struct {
	XMLName         xml.Name `xml:"jabber:client error"`
	By              string   `xml:"by,attr,omitempty"`
	Type            string   `xml:"type,attr"`
	Condition       StanzaErrorCondition
	Text            string      `xml:"text,omitempty"`
	CustomCondition interface{} `xml:",omitempty"`
}

type StanzaErrorCondition struct {
	XMLName xml.Name
}

var (
	StanzaErrorConditionBadRequest            = StanzaErrorCondition{xml.Name{Space: StanzasNS, Local: "bad-request"}}
	StanzaErrorConditionConflict              = StanzaErrorCondition{xml.Name{Space: StanzasNS, Local: "conflict"}}
	StanzaErrorConditionFeatureNotImplemented = StanzaErrorCondition{xml.Name{Space: StanzasNS, Local: "feature-not-implemented"}}
	StanzaErrorConditionItemNotFound          = StanzaErrorCondition{xml.Name{Space: StanzasNS, Local: "item-not-found"}}
	StanzaErrorConditionRemoteServerTimeout   = StanzaErrorCondition{xml.Name{Space: StanzasNS, Local: "remote-server-timeout"}}
	StanzaErrorConditionServiceUnavailable    = StanzaErrorCondition{xml.Name{Space: StanzasNS, Local: "service-unavailable"}}
)
