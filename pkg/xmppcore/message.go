package xmppcore

import (
	"encoding/xml"
)

const (
	ClientMessageElementName        = JabberClientNS + " message"
	ClientMessageBodyElementName    = JabberClientNS + " body"
	ClientMessageSubjectElementName = JabberClientNS + " subject"
	ClientMessageThreadElementName  = JabberClientNS + " thread"
)

// RFC 6121 section 5.2.2
const (
	MessageTypeChat      = "chat"
	MessageTypeError     = "error"
	MessageTypeGroupChat = "groupchat"
	MessageTypeHeadline  = "headline"
	MessageTypeNormal    = "normal"
)

type ClientMessage struct {
	XMLName xml.Name     `xml:"jabber:client message"`
	ID      string       `xml:"id,attr,omitempty"`
	From    *JID         `xml:"from,attr,omitempty"`
	To      *JID         `xml:"to,attr,omitempty"`
	Type    string       `xml:"type,attr,omitempty"` // Any of MessageType*
	Body    string       `xml:"body,omitempty"`
	Subject string       `xml:"subject,omitempty"`
	Thread  string       `xml:"thread,omitempty"`
	Error   *StanzaError `xml:",omitempty"`
}

func (msg *ClientMessage) StanzaID() string { return msg.ID }

func (msg *ClientMessage) SetStanzaID(id string) { msg.ID = id }
