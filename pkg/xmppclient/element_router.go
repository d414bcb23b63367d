package xmppclient

import (
	"encoding/xml"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/exavolt/xmpp-client/pkg/xmppcore"
)

// elementRouter turns decoded top-level stream elements into core
// deliveries: stanzas go to the dispatch engine, negotiation elements
// to the negotiation paths, anything unexpected is logged and skipped.
// Shared by the TCP and WebSocket transports.
type elementRouter struct {
	deliver    func(xmppcore.Stanza)
	saslResult chan error

	mu           sync.Mutex
	lastFeatures *xmppcore.StreamFeatures
}

func newElementRouter(deliver func(xmppcore.Stanza)) *elementRouter {
	return &elementRouter{
		deliver:    deliver,
		saslResult: make(chan error, 1),
	}
}

func (r *elementRouter) route(decoder *xml.Decoder, startElem *xml.StartElement) error {
	switch startElem.Name.Space + " " + startElem.Name.Local {
	case xmppcore.ClientIQElementName:
		var iq xmppcore.ClientIQ
		if err := decoder.DecodeElement(&iq, startElem); err != nil {
			return errors.Wrap(err, "malformed iq stanza")
		}
		r.deliver(&iq)
	case xmppcore.ClientMessageElementName:
		var msg xmppcore.ClientMessage
		if err := decoder.DecodeElement(&msg, startElem); err != nil {
			return errors.Wrap(err, "malformed message stanza")
		}
		r.deliver(&msg)
	case xmppcore.ClientPresenceElementName:
		var presence xmppcore.ClientPresence
		if err := decoder.DecodeElement(&presence, startElem); err != nil {
			return errors.Wrap(err, "malformed presence stanza")
		}
		r.deliver(&presence)
	case xmppcore.StreamFeaturesElementName:
		var features xmppcore.StreamFeatures
		if err := decoder.DecodeElement(&features, startElem); err != nil {
			return errors.Wrap(err, "malformed stream features")
		}
		r.mu.Lock()
		r.lastFeatures = &features
		r.mu.Unlock()
	case xmppcore.SASLSuccessElementName:
		if err := decoder.Skip(); err != nil {
			return errors.Wrap(err, "malformed SASL success")
		}
		r.pushSASLResult(nil)
	case xmppcore.SASLFailureElementName:
		var failure xmppcore.SASLFailure
		if err := decoder.DecodeElement(&failure, startElem); err != nil {
			return errors.Wrap(err, "malformed SASL failure")
		}
		r.pushSASLResult(&AuthenticationError{
			Condition: "not-authorized",
			Text:      failure.Text,
		})
	case xmppcore.StreamErrorElementName:
		var streamErr xmppcore.StreamError
		if err := decoder.DecodeElement(&streamErr, startElem); err != nil {
			return errors.Wrap(err, "malformed stream error")
		}
		return errors.Errorf("stream error from server: %s", streamErr.Text)
	default:
		log.Warn("Unexpected XMPP element: ", startElem.Name)
		if err := decoder.Skip(); err != nil {
			return errors.Wrap(err, "malformed element")
		}
	}
	return nil
}

func (r *elementRouter) pushSASLResult(err error) {
	select {
	case r.saslResult <- err:
	default:
	}
}

func (r *elementRouter) awaitSASLResult(clk clock.Clock, timeout time.Duration) error {
	timer := clk.Timer(timeout)
	defer timer.Stop()
	select {
	case err := <-r.saslResult:
		return err
	case <-timer.C:
		return errors.New("timed out waiting for SASL result")
	}
}

// Features returns the most recently received stream features, or nil.
func (r *elementRouter) Features() *xmppcore.StreamFeatures {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFeatures
}
