package xmppclient

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultResource is bound when neither the configuration nor the
// credentials name one.
const DefaultResource = "Client"

const (
	DefaultReconnectInitialDelay = 1 * time.Second
	DefaultReconnectMaxDelay     = 60 * time.Second
)

type Config struct {
	// Domain is the XMPP service domain, used to qualify bare
	// usernames into JIDs.
	Domain string

	// Resource is the default resourcepart bound on login.
	Resource string

	// Authenticator performs the login exchange. Defaults to
	// PlainAuthenticator.
	Authenticator Authenticator

	// AutomaticReconnect enables the reconnection coordinator. The
	// core cannot know whether retrying is desirable for a given
	// deployment, so this is off by default.
	AutomaticReconnect    bool
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration

	// Clock drives collector timeouts and reconnect backoff. Defaults
	// to the real clock; tests substitute a mock.
	Clock clock.Clock

	// Metrics, when set, receives the dispatch and send-path counters.
	Metrics prometheus.Registerer
}

func (cfg Config) withDefaults() Config {
	if cfg.Authenticator == nil {
		cfg.Authenticator = PlainAuthenticator{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.ReconnectInitialDelay <= 0 {
		cfg.ReconnectInitialDelay = DefaultReconnectInitialDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	return cfg
}
