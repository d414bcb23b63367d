package xmppcore

import (
	"encoding/xml"
)

// XEP-0199

const PingNS = "urn:xmpp:ping"

const PingElementName = PingNS + " ping"

type Ping struct {
	XMLName xml.Name `xml:"urn:xmpp:ping ping"`
}
