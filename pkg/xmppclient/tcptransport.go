package xmppclient

import (
	"bytes"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/exavolt/xmpp-client/pkg/xmppcore"
)

type TCPTransportConfig struct {
	// Address is the server's host:port.
	Address string
	// Domain is the service domain for the stream header's 'to'.
	Domain string
	// TLSConfig, when set, dials a direct TLS connection.
	TLSConfig *tls.Config
	// DialTimeout bounds the TCP dial. Zero means no bound.
	DialTimeout time.Duration

	Clock clock.Clock
}

// TCPTransport speaks RFC 6120 over a TCP (optionally TLS) connection.
// A reader goroutine tokenizes the stream and routes each top-level
// element; the write path serializes whole elements under a mutex.
type TCPTransport struct {
	cfg TCPTransportConfig
	clk clock.Clock

	router *elementRouter
	lostFn func(error)

	writeMutex sync.Mutex

	mu       sync.Mutex
	conn     net.Conn
	streamID string
	closing  bool
}

func NewTCPTransport(cfg TCPTransportConfig) *TCPTransport {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &TCPTransport{cfg: cfg, clk: clk}
}

func (t *TCPTransport) SetHandlers(deliver func(xmppcore.Stanza), lost func(error)) {
	t.router = newElementRouter(deliver)
	t.lostFn = lost
}

func (t *TCPTransport) Connect() error {
	if t.router == nil {
		return errors.New("transport handlers are not wired")
	}

	dialer := &net.Dialer{Timeout: t.cfg.DialTimeout}
	var conn net.Conn
	var err error
	if t.cfg.TLSConfig != nil {
		conn, err = tls.DialWithDialer(dialer, "tcp", t.cfg.Address, t.cfg.TLSConfig)
	} else {
		conn, err = dialer.Dial("tcp", t.cfg.Address)
	}
	if err != nil {
		return errors.Wrap(err, "unable to dial")
	}

	_, err = fmt.Fprintf(conn, xml.Header+
		"<stream:stream to='%s' xmlns='%s'"+
		" xmlns:stream='%s' version='1.0'>",
		xmlEscapeString(t.cfg.Domain), xmppcore.JabberClientNS,
		xmppcore.JabberStreamsNS)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "unable to open stream")
	}

	t.mu.Lock()
	t.conn = conn
	t.closing = false
	t.streamID = ""
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

func (t *TCPTransport) Send(element interface{}) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("tcp transport is not connected")
	}
	elementXML, err := xml.Marshal(element)
	if err != nil {
		return errors.Wrap(err, "unable to marshal element")
	}
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	if _, err := conn.Write(elementXML); err != nil {
		return errors.Wrap(err, "unable to write element")
	}
	return nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.closing = true
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	conn.Write([]byte("</stream:stream>"))
	return conn.Close()
}

func (t *TCPTransport) Secure() bool { return t.cfg.TLSConfig != nil }

func (t *TCPTransport) Compressed() bool { return false }

func (t *TCPTransport) AwaitSASLResult(timeout time.Duration) error {
	return t.router.awaitSASLResult(t.clk, timeout)
}

// StreamID returns the stream identifier the server assigned in its
// stream header, or an empty string before the header is received.
func (t *TCPTransport) StreamID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streamID
}

func (t *TCPTransport) readLoop(conn net.Conn) {
	decoder := xml.NewDecoder(conn)
	for {
		token, err := decoder.Token()
		if err != nil {
			t.readEnded(conn, err)
			return
		}
		if token == nil {
			t.readEnded(conn, errors.New("nil token from decoder"))
			return
		}

		switch elem := token.(type) {
		case xml.StartElement:
			if elem.Name.Space == xmppcore.JabberStreamsNS && elem.Name.Local == "stream" {
				for _, attr := range elem.Attr {
					if attr.Name.Local == "id" {
						t.mu.Lock()
						t.streamID = attr.Value
						t.mu.Unlock()
					}
				}
				// The stream element stays open; its children are the
				// top-level elements.
				continue
			}
			if err := t.router.route(decoder, &elem); err != nil {
				t.readEnded(conn, err)
				return
			}
		case xml.EndElement:
			if elem.Name.Space == xmppcore.JabberStreamsNS && elem.Name.Local == "stream" {
				t.readEnded(conn, io.EOF)
				return
			}
		case xml.ProcInst, xml.CharData, xml.Comment, xml.Directive:
			// Whitespace keepalives and the XML declaration.
		}
	}
}

func (t *TCPTransport) readEnded(conn net.Conn, err error) {
	t.mu.Lock()
	closing := t.closing
	streamID := t.streamID
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close()

	if closing || err == io.EOF {
		log.WithFields(logrus.Fields{"stream": streamID}).
			Info("Stream closed")
		if closing {
			return
		}
	} else {
		log.WithFields(logrus.Fields{"stream": streamID}).
			Warn("Stream read failed: ", err)
	}
	if t.lostFn != nil {
		t.lostFn(err)
	}
}

func xmlEscapeString(s string) string {
	var b bytes.Buffer
	xml.Escape(&b, []byte(s))
	return b.String()
}
