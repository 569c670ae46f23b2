// Package timer drives the countdown for a timed quiz attempt.
//
// Elapsed time is always recomputed from the clock rather than counted in
// ticks, so a process that is suspended or throttled catches up on the next
// tick instead of drifting.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizsync/internal/notify"
)

const (
	tickInterval = time.Second

	// DefaultWarningThreshold is the low-time warning level in seconds.
	DefaultWarningThreshold = 60
)

// State is a snapshot of the countdown. At most one of IsRunning, IsPaused
// and IsExpired is true; all false means not started.
type State struct {
	TotalTime     int  `json:"total_time"`
	TimeRemaining int  `json:"time_remaining"`
	ElapsedTime   int  `json:"elapsed_time"`
	IsRunning     bool `json:"is_running"`
	IsPaused      bool `json:"is_paused"`
	IsExpired     bool `json:"is_expired"`
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Timer) { t.log = log }
}

// Timer is the countdown for one quiz attempt. Construct one per attempt
// host and pass it to whoever needs to observe it.
type Timer struct {
	clock clockwork.Clock
	log   zerolog.Logger

	mu          sync.Mutex
	state       State
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	// done is closed to stop the active tick loop; nil while not ticking.
	done chan struct{}

	states *notify.Broadcaster[State]
}

// New creates a stopped Timer.
func New(opts ...Option) *Timer {
	t := &Timer{
		clock:  clockwork.NewRealClock(),
		log:    zerolog.Nop(),
		states: notify.New(State{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With().Str("component", "quiz_timer").Logger()
	return t
}

// Start begins a fresh attempt of totalSeconds, replacing any current one.
// A non-positive duration means untimed and is ignored.
func (t *Timer) Start(totalSeconds int) {
	if totalSeconds <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.halt()
	t.startedAt = t.clock.Now()
	t.pausedAt = time.Time{}
	t.pausedTotal = 0

	t.publish(State{
		TotalTime:     totalSeconds,
		TimeRemaining: totalSeconds,
		IsRunning:     true,
	})
	t.launch()

	t.log.Debug().Int("total_seconds", totalSeconds).Msg("Timer started")
}

// Pause freezes the countdown. No-op unless running.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.IsRunning {
		return
	}

	t.refresh()
	if t.state.IsExpired {
		return
	}

	t.halt()
	t.pausedAt = t.clock.Now()

	s := t.state
	s.IsRunning = false
	s.IsPaused = true
	t.publish(s)

	t.log.Debug().Int("time_remaining", s.TimeRemaining).Msg("Timer paused")
}

// Resume continues a paused countdown. No-op unless paused.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.IsPaused || t.state.IsExpired {
		return
	}

	t.pausedTotal += t.clock.Now().Sub(t.pausedAt)
	t.pausedAt = time.Time{}

	s := t.state
	s.IsRunning = true
	s.IsPaused = false
	t.publish(s)
	t.launch()

	t.log.Debug().Int("time_remaining", s.TimeRemaining).Msg("Timer resumed")
}

// Stop cancels ticking and resets to the not-started state. Safe to call at
// any time, any number of times.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.halt()
	t.startedAt = time.Time{}
	t.pausedAt = time.Time{}
	t.pausedTotal = 0
	t.publish(State{})
}

// AddTime grants (or, when negative, removes) seconds on a running or paused
// attempt. The remaining time never drops below zero; reaching zero expires
// the attempt.
func (t *Timer) AddTime(deltaSeconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.IsRunning && !t.state.IsPaused {
		return
	}

	s := t.state
	s.TimeRemaining += deltaSeconds
	if s.TimeRemaining < 0 {
		s.TimeRemaining = 0
	}
	s.TotalTime = s.ElapsedTime + s.TimeRemaining
	t.publish(s)

	if s.TimeRemaining == 0 {
		t.expire()
	}
}

// State returns the latest published snapshot.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Watch streams timer states, starting with the current one. Consumers react
// to IsExpired; the timer itself does nothing beyond reporting it.
func (t *Timer) Watch(ctx context.Context) <-chan State {
	return t.states.Watch(ctx)
}

// ProgressPercentage returns elapsed/total as a percentage, 0 when not started.
func (t *Timer) ProgressPercentage() float64 {
	s := t.State()
	if s.TotalTime == 0 {
		return 0
	}
	return float64(s.ElapsedTime) / float64(s.TotalTime) * 100
}

// TimeWarning reports whether 0 < remaining <= thresholdSeconds.
func (t *Timer) TimeWarning(thresholdSeconds int) bool {
	s := t.State()
	return s.TimeRemaining > 0 && s.TimeRemaining <= thresholdSeconds
}

// ─── internals (callers hold t.mu) ────────────────────────────────────

func (t *Timer) launch() {
	done := make(chan struct{})
	t.done = done
	ticker := t.clock.NewTicker(tickInterval)
	go t.run(ticker, done)
}

func (t *Timer) halt() {
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}

func (t *Timer) run(ticker clockwork.Ticker, done chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			if !t.tick(done) {
				return
			}
		}
	}
}

// tick reports whether the loop owning done should keep going.
func (t *Timer) tick(done chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A stale loop can win the lock after Stop/Start replaced it.
	if t.done != done {
		return false
	}
	t.refresh()
	return t.state.IsRunning
}

func (t *Timer) refresh() {
	active := t.clock.Now().Sub(t.startedAt) - t.pausedTotal
	elapsed := int(active / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := t.state.TotalTime - elapsed
	if remaining <= 0 {
		t.expire()
		return
	}

	s := t.state
	s.ElapsedTime = elapsed
	s.TimeRemaining = remaining
	t.publish(s)
}

func (t *Timer) expire() {
	t.halt()

	s := t.state
	s.TimeRemaining = 0
	s.ElapsedTime = s.TotalTime
	s.IsRunning = false
	s.IsPaused = false
	s.IsExpired = true
	t.publish(s)

	t.log.Info().Int("total_seconds", s.TotalTime).Msg("Timer expired")
}

func (t *Timer) publish(s State) {
	t.state = s
	t.states.Publish(s)
}
