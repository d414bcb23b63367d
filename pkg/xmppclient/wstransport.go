package xmppclient

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/exavolt/xmpp-client/pkg/xmppcore"
)

// RFC 7395 framing
const framingNS = "urn:ietf:params:xml:ns:xmpp-framing"

type WebSocketTransportConfig struct {
	// URL of the WebSocket endpoint, ws:// or wss://.
	URL string
	// Domain is the service domain for the framing open element.
	Domain string
	// Dialer overrides the default dialer, e.g. for TLS settings.
	Dialer *websocket.Dialer

	Clock clock.Clock
}

// WebSocketTransport speaks the XMPP WebSocket binding (RFC 7395):
// every WebSocket text message carries exactly one top-level element.
type WebSocketTransport struct {
	cfg WebSocketTransportConfig
	clk clock.Clock

	router *elementRouter
	lostFn func(error)

	writeMutex sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool
}

func NewWebSocketTransport(cfg WebSocketTransportConfig) *WebSocketTransport {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &WebSocketTransport{cfg: cfg, clk: clk}
}

func (t *WebSocketTransport) SetHandlers(deliver func(xmppcore.Stanza), lost func(error)) {
	t.router = newElementRouter(deliver)
	t.lostFn = lost
}

func (t *WebSocketTransport) Connect() error {
	if t.router == nil {
		return errors.New("transport handlers are not wired")
	}

	dialer := t.cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
			Subprotocols:     []string{"xmpp"},
		}
	}
	conn, _, err := dialer.Dial(t.cfg.URL, nil)
	if err != nil {
		return errors.Wrap(err, "unable to dial")
	}

	open := fmt.Sprintf("<open xmlns='%s' to='%s' version='1.0'/>",
		framingNS, xmlEscapeString(t.cfg.Domain))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(open)); err != nil {
		conn.Close()
		return errors.Wrap(err, "unable to open stream")
	}

	t.mu.Lock()
	t.conn = conn
	t.closing = false
	t.mu.Unlock()

	go t.readPump(conn)
	return nil
}

func (t *WebSocketTransport) Send(element interface{}) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("websocket transport is not connected")
	}
	elementXML, err := xml.Marshal(element)
	if err != nil {
		return errors.Wrap(err, "unable to marshal element")
	}
	// gorilla/websocket allows one concurrent writer.
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, elementXML); err != nil {
		return errors.Wrap(err, "unable to write element")
	}
	return nil
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.closing = true
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	t.writeMutex.Lock()
	conn.WriteMessage(websocket.TextMessage,
		[]byte(fmt.Sprintf("<close xmlns='%s'/>", framingNS)))
	t.writeMutex.Unlock()
	return conn.Close()
}

func (t *WebSocketTransport) Secure() bool {
	return strings.HasPrefix(t.cfg.URL, "wss:")
}

func (t *WebSocketTransport) Compressed() bool { return false }

func (t *WebSocketTransport) AwaitSASLResult(timeout time.Duration) error {
	return t.router.awaitSASLResult(t.clk, timeout)
}

func (t *WebSocketTransport) readPump(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.readEnded(conn, err)
			return
		}
		if err := t.handleFrame(frame); err != nil {
			t.readEnded(conn, err)
			return
		}
	}
}

// handleFrame routes one WebSocket message, which per RFC 7395 holds a
// single complete top-level element.
func (t *WebSocketTransport) handleFrame(frame []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(frame))
	for {
		token, err := decoder.Token()
		if err != nil {
			return errors.Wrap(err, "malformed frame")
		}
		startElem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if startElem.Name.Space == framingNS {
			switch startElem.Name.Local {
			case "open":
				return nil
			case "close":
				return errors.New("server closed the stream")
			}
		}
		return t.router.route(decoder, &startElem)
	}
}

func (t *WebSocketTransport) readEnded(conn *websocket.Conn, err error) {
	t.mu.Lock()
	closing := t.closing
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close()

	if closing {
		log.Info("WebSocket stream closed")
		return
	}
	log.Warn("WebSocket stream failed: ", err)
	if t.lostFn != nil {
		t.lostFn(err)
	}
}
