package xmppcore

import (
	"encoding/xml"
)

const (
	StreamStreamElementName   = JabberStreamsNS + " stream"
	StreamFeaturesElementName = JabberStreamsNS + " features"
	StreamErrorElementName    = JabberStreamsNS + " error"
)

// RFC 6120  4.3.2  Stream Features Format
//
// StreamFeatures is the client-side view of the features the server
// advertises after a stream header; which children are present depends
// on the negotiation stage.
type StreamFeatures struct {
	XMLName    xml.Name        `xml:"http://etherx.jabber.org/streams features"`
	StartTLS   *TLSStartTLS    `xml:"starttls,omitempty"`
	Mechanisms *SASLMechanisms `xml:"mechanisms,omitempty"`
	Bind       *BindBind       `xml:"bind,omitempty"`
}

// RFC 6120  4.9  Stream Errors

// RFC 6120  4.9.2
type StreamError struct {
	XMLName         xml.Name `xml:"http://etherx.jabber.org/streams error"`
	Condition       StreamErrorCondition
	Text            string      `xml:"text"`
	CustomCondition interface{} `xml:",omitempty"`
}

// RFC 6120  4.9.3  Defined Stream Error Conditions

// Per latest revision of RFC 6120, stream error conditions are empty elements.
type StreamErrorCondition struct {
	XMLName xml.Name
}

var (
	StreamErrorConditionBadFormat           = StreamErrorCondition{xml.Name{Space: StreamsNS, Local: "bad-format"}}
	StreamErrorConditionConnectionTimeout   = StreamErrorCondition{xml.Name{Space: StreamsNS, Local: "connection-timeout"}}
	StreamErrorConditionHostUnknown         = StreamErrorCondition{xml.Name{Space: StreamsNS, Local: "host-unknown"}}
	StreamErrorConditionInternalServerError = StreamErrorCondition{xml.Name{Space: StreamsNS, Local: "internal-server-error"}}
	StreamErrorConditionInvalidFrom         = StreamErrorCondition{xml.Name{Space: StreamsNS, Local: "invalid-from"}}
	StreamErrorConditionNotAuthorized       = StreamErrorCondition{xml.Name{Space: StreamsNS, Local: "not-authorized"}}
	StreamErrorConditionSystemShutdown      = StreamErrorCondition{xml.Name{Space: StreamsNS, Local: "system-shutdown"}}
)
