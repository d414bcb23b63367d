package xmppclient

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// reconnector reacts to unexpected disconnections by driving the state
// machine back to connected, with doubling backoff between attempts.
// It never replays in-flight sends; resend semantics are the caller's
// responsibility. Created only when Config.AutomaticReconnect is set.
type reconnector struct {
	conn         *Connection
	clk          clock.Clock
	initialDelay time.Duration
	maxDelay     time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func newReconnector(conn *Connection, cfg Config) *reconnector {
	return &reconnector{
		conn:         conn,
		clk:          cfg.Clock,
		initialDelay: cfg.ReconnectInitialDelay,
		maxDelay:     cfg.ReconnectMaxDelay,
	}
}

func (r *reconnector) connectionLost() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()
	go r.run(stopCh)
}

// stop aborts a reconnection attempt in progress. Called on deliberate
// shutdown so a caller-initiated disconnect is never fought by the
// coordinator.
func (r *reconnector) stop() {
	r.mu.Lock()
	if r.running {
		close(r.stopCh)
		r.running = false
	}
	r.mu.Unlock()
}

func (r *reconnector) run(stopCh chan struct{}) {
	defer func() {
		r.mu.Lock()
		if r.stopCh == stopCh {
			r.running = false
		}
		r.mu.Unlock()
	}()

	delay := r.initialDelay
	for {
		timer := r.clk.Timer(delay)
		select {
		case <-timer.C:
		case <-stopCh:
			timer.Stop()
			return
		}
		select {
		case <-stopCh:
			// stop raced the timer; the stop wins.
			return
		default:
		}

		err := r.conn.Connect()
		if err == nil {
			log.WithField("conn", r.conn.ConnectionID()).Info("Reconnected")
			return
		}
		var stateErr *IllegalStateError
		if errors.As(err, &stateErr) {
			// Someone connected in the meantime.
			return
		}
		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
		log.Warnf("Reconnect attempt failed: %v; retrying in %s", err, delay)
	}
}
