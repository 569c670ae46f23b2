// Package connectivity watches API reachability and reports transitions to a
// single listener.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Prober checks reachability; nil means reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// Listener receives connectivity transitions.
type Listener interface {
	OnConnectivityChange(ctx context.Context, online bool)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, online bool)

func (f ListenerFunc) OnConnectivityChange(ctx context.Context, online bool) { f(ctx, online) }

// Monitor polls a Prober and notifies its Listener whenever the observed
// state changes. The first observation always counts as a change.
type Monitor struct {
	prober       Prober
	listener     Listener
	interval     time.Duration
	probeTimeout time.Duration
	clock        clockwork.Clock
	log          zerolog.Logger

	mu    sync.Mutex
	known bool
	state bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithProbeTimeout bounds a single probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.probeTimeout = d }
}

// DefaultInterval replaces a non-positive probe interval.
const DefaultInterval = 10 * time.Second

// NewMonitor creates a Monitor probing every interval.
func NewMonitor(prober Prober, listener Listener, interval time.Duration, log zerolog.Logger, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		prober:       prober,
		listener:     listener,
		interval:     interval,
		probeTimeout: 5 * time.Second,
		clock:        clockwork.NewRealClock(),
		log:          log.With().Str("component", "connectivity_monitor").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start probes immediately and then on every interval until ctx is done.
// Call in a goroutine.
func (m *Monitor) Start(ctx context.Context) {
	m.log.Info().Dur("interval", m.interval).Msg("Monitor started")

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Monitor stopped")
			return
		case <-ticker.Chan():
			m.Probe(ctx)
		}
	}
}

// Probe runs one reachability check, notifies the listener on a transition,
// and returns the observed state.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.prober.Ping(probeCtx)
	cancel()

	online := err == nil
	if ctx.Err() != nil {
		return online
	}

	m.mu.Lock()
	changed := !m.known || m.state != online
	m.known = true
	m.state = online
	m.mu.Unlock()

	if !changed {
		return online
	}

	if online {
		m.log.Info().Msg("API reachable")
	} else {
		m.log.Warn().Err(err).Msg("API unreachable")
	}
	m.listener.OnConnectivityChange(ctx, online)
	return online
}

// Online returns the last observed state and whether any probe has completed.
func (m *Monitor) Online() (online, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.known
}
