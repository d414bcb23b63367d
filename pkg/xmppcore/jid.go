package xmppcore

import (
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"
)

//TODO: keep things normalized (stringprep / PRECIS profiles)

type JID struct {
	Local    string
	Domain   string
	Resource string
}

// ParseJID parses a JID string of the form
// localpart@domainpart/resourcepart, where the localpart and the
// resourcepart are optional. An empty string parses to an empty JID.
func ParseJID(s string) (JID, error) {
	if s == "" {
		return JID{}, nil
	}
	var jid JID
	if idx := strings.Index(s, "/"); idx >= 0 {
		jid.Resource = s[idx+1:]
		s = s[:idx]
	}
	if idx := strings.Index(s, "@"); idx >= 0 {
		jid.Local = s[:idx]
		s = s[idx+1:]
	}
	if s == "" {
		return JID{}, errors.Errorf("JID has empty domainpart")
	}
	jid.Domain = s
	return jid, nil
}

// Bare returns the "bare JID" string.
//
// RFC 6120  1.4:
// The term "bare JID" refers to an XMPP address of the form
// <localpart@domainpart> (for an account at a server) or of the form
// <domainpart> (for a server).
func (jid JID) Bare() string {
	if jid.Local != "" {
		return jid.Local + "@" + jid.Domain
	}
	return jid.Domain
}

// Full returns the "full JID" string.
//
// RFC 6120  1.4
// The term "full JID" refers to an XMPP address of the form
// <localpart@domainpart/resourcepart> (for a particular authorized client
// or device associated with an account) or of the form
// <domainpart/resourcepart> (for a particular resource or script associated
// with a server).
func (jid JID) Full() string {
	return jid.Bare() + "/" + jid.Resource
}

func (jid JID) IsEmpty() bool {
	return jid.Local == "" && jid.Domain == "" && jid.Resource == ""
}

func (jid JID) IsBare() bool {
	return jid.Domain != "" && jid.Resource == ""
}

func (jid JID) IsFull() bool {
	return jid.Domain != "" && jid.Resource != ""
}

func (jid JID) Equals(other JID) bool {
	return jid.Local == other.Local && jid.Domain == other.Domain &&
		jid.Resource == other.Resource
}

func (jid JID) String() string {
	if jid.Resource != "" {
		return jid.Full()
	}
	return jid.Bare()
}

func (jid JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if jid.IsEmpty() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: jid.String()}, nil
}

func (jid *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	parsed, err := ParseJID(attr.Value)
	if err != nil {
		return err
	}
	*jid = parsed
	return nil
}

// A JID may also appear as element character data, e.g. in a resource
// binding result.

func (jid JID) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(jid.String(), start)
}

func (jid *JID) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	parsed, err := ParseJID(s)
	if err != nil {
		return err
	}
	*jid = parsed
	return nil
}
