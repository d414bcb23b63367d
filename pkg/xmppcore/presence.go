package xmppcore

import (
	"encoding/xml"
)

const ClientPresenceElementName = JabberClientNS + " presence"

// RFC 6121  4.7.1
const (
	PresenceTypeError        = "error"
	PresenceTypeProbe        = "probe"
	PresenceTypeSubscribe    = "subscribe"
	PresenceTypeSubscribed   = "subscribed"
	PresenceTypeUnavailable  = "unavailable"
	PresenceTypeUnsubscribe  = "unsubscribe"
	PresenceTypeUnsubscribed = "unsubscribed"
)

// RFC 6121  4.7
type ClientPresence struct {
	XMLName xml.Name     `xml:"jabber:client presence"`
	ID      string       `xml:"id,attr,omitempty"`
	Type    string       `xml:"type,attr,omitempty"` // Any of PresenceType*
	From    *JID         `xml:"from,attr,omitempty"`
	To      *JID         `xml:"to,attr,omitempty"`
	Show    string       `xml:"show,omitempty"`
	Status  string       `xml:"status,omitempty"`
	Error   *StanzaError `xml:",omitempty"`
}

func (p *ClientPresence) StanzaID() string { return p.ID }

func (p *ClientPresence) SetStanzaID(id string) { p.ID = id }
