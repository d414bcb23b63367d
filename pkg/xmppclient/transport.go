package xmppclient

import (
	"encoding/base64"
	"time"

	"github.com/pkg/errors"

	"github.com/exavolt/xmpp-client/pkg/xmppcore"
)

// Transport is the wire collaborator the connection core drives. It
// owns socket handling and XML tokenization; the core owns everything
// above that.
type Transport interface {
	// Connect establishes the underlying stream. Invoked by
	// Connection.Connect.
	Connect() error
	// Send writes one top-level element. The wire form of a single
	// element must stay atomic with respect to concurrent Send calls.
	Send(element interface{}) error
	Close() error
	// Secure reports whether the stream is encrypted.
	Secure() bool
	// Compressed reports whether stream compression is active.
	Compressed() bool
	// SetHandlers wires the inbound stanza path and the
	// connection-loss signal. Called once, before Connect.
	SetHandlers(deliver func(xmppcore.Stanza), lost func(error))
}

// SASLPlainAuthVerifier is implemented by transports that can verify
// PLAIN credentials without a wire exchange. The in-memory transport
// uses it to simulate server-side credential checks.
type SASLPlainAuthVerifier interface {
	VerifySASLPlainAuth(username, password []byte) (bool, error)
}

// SASLResultAwaiter is implemented by stream transports that intercept
// the server's SASL result elements during negotiation.
type SASLResultAwaiter interface {
	AwaitSASLResult(timeout time.Duration) error
}

type Credentials struct {
	// Username is a localpart or a bare JID string.
	Username string
	Password string
	// Resource overrides the configured resource for this login.
	Resource string
}

// Authenticator performs the authentication exchange during login. The
// mechanism implementation is external to the core.
type Authenticator interface {
	Authenticate(tr Transport, creds Credentials) error
}

// DefaultAuthTimeout bounds the wait for a SASL result when the
// authenticator has no explicit timeout configured.
const DefaultAuthTimeout = 30 * time.Second

// PlainAuthenticator performs a SASL PLAIN exchange (RFC 6120 6.4.2).
type PlainAuthenticator struct {
	Timeout time.Duration
}

func (a PlainAuthenticator) Authenticate(tr Transport, creds Credentials) error {
	payload := make([]byte, 0, len(creds.Username)+len(creds.Password)+2)
	payload = append(payload, 0)
	payload = append(payload, creds.Username...)
	payload = append(payload, 0)
	payload = append(payload, creds.Password...)
	auth := &xmppcore.SASLAuth{
		Mechanism: "PLAIN",
		CharData:  base64.StdEncoding.EncodeToString(payload),
	}
	if err := tr.Send(auth); err != nil {
		return &TransportError{Cause: err}
	}

	if v, ok := tr.(SASLPlainAuthVerifier); ok {
		authOK, err := v.VerifySASLPlainAuth([]byte(creds.Username), []byte(creds.Password))
		if err != nil {
			return errors.Wrap(err, "SASL PLAIN verification")
		}
		if !authOK {
			return &AuthenticationError{
				Condition: "not-authorized",
				Text:      "invalid username or password",
			}
		}
		return nil
	}

	if w, ok := tr.(SASLResultAwaiter); ok {
		timeout := a.Timeout
		if timeout <= 0 {
			timeout = DefaultAuthTimeout
		}
		return w.AwaitSASLResult(timeout)
	}
	return errors.New("transport provides no SASL result path")
}
