package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func newFakeTimer(t *testing.T) (*Timer, clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	tm := New(WithClock(fc))
	t.Cleanup(tm.Stop)
	return tm, fc
}

func waitState(t *testing.T, tm *Timer, cond func(State) bool) State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(tm.State()) }, waitFor, 2*time.Millisecond)
	return tm.State()
}

func TestStartPublishesInitialState(t *testing.T) {
	tm, _ := newFakeTimer(t)

	tm.Start(90)

	require.Equal(t, State{TotalTime: 90, TimeRemaining: 90, IsRunning: true}, tm.State())
}

func TestStartIgnoresNonPositiveDuration(t *testing.T) {
	tm, _ := newFakeTimer(t)

	tm.Start(0)
	tm.Start(-5)

	require.Equal(t, State{}, tm.State())
}

func TestCountdownScenario(t *testing.T) {
	tm, fc := newFakeTimer(t)
	tm.Start(5)

	fc.Advance(3 * time.Second)
	s := waitState(t, tm, func(s State) bool { return s.TimeRemaining == 2 })
	require.Equal(t, 3, s.ElapsedTime)
	require.True(t, s.IsRunning)
	require.InDelta(t, 60.0, tm.ProgressPercentage(), 0.0001)

	fc.Advance(3 * time.Second)
	s = waitState(t, tm, func(s State) bool { return s.IsExpired })
	require.Equal(t, 0, s.TimeRemaining)
	require.Equal(t, 5, s.ElapsedTime)
	require.False(t, s.IsRunning)
	require.False(t, s.IsPaused)
}

func TestRemainingIsMonotonicAndReachesZero(t *testing.T) {
	tm, fc := newFakeTimer(t)
	const total = 4
	tm.Start(total)

	prev := total
	for i := 1; i <= total; i++ {
		fc.Advance(time.Second)
		want := total - i
		s := waitState(t, tm, func(s State) bool { return s.TimeRemaining == want })
		require.LessOrEqual(t, s.TimeRemaining, prev)
		require.GreaterOrEqual(t, s.TimeRemaining, 0)
		prev = s.TimeRemaining
	}

	require.True(t, tm.State().IsExpired)
}

func TestPauseFreezesState(t *testing.T) {
	tm, fc := newFakeTimer(t)
	tm.Start(10)

	fc.Advance(2 * time.Second)
	waitState(t, tm, func(s State) bool { return s.TimeRemaining == 8 })

	tm.Pause()
	paused := tm.State()
	require.True(t, paused.IsPaused)
	require.False(t, paused.IsRunning)
	require.Equal(t, 8, paused.TimeRemaining)

	fc.Advance(30 * time.Second)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, paused, tm.State())

	tm.Resume()
	require.True(t, tm.State().IsRunning)
	require.Equal(t, 8, tm.State().TimeRemaining)

	fc.Advance(time.Second)
	s := waitState(t, tm, func(s State) bool { return s.TimeRemaining == 7 })
	require.Equal(t, 3, s.ElapsedTime)
}

func TestPauseAndResumeAreNoOpsInWrongState(t *testing.T) {
	tm, _ := newFakeTimer(t)

	tm.Pause()
	tm.Resume()
	require.Equal(t, State{}, tm.State())

	tm.Start(10)
	tm.Resume()
	require.True(t, tm.State().IsRunning)

	tm.Pause()
	tm.Pause()
	require.True(t, tm.State().IsPaused)
}

func TestExpiryIsTerminal(t *testing.T) {
	tm, fc := newFakeTimer(t)
	tm.Start(2)

	fc.Advance(2 * time.Second)
	waitState(t, tm, func(s State) bool { return s.IsExpired })

	tm.Resume()
	tm.Pause()
	tm.AddTime(30)
	s := tm.State()
	require.True(t, s.IsExpired)
	require.False(t, s.IsRunning)

	tm.Start(3)
	s = tm.State()
	require.True(t, s.IsRunning)
	require.False(t, s.IsExpired)
	require.Equal(t, 3, s.TimeRemaining)
}

func TestStopResetsAndIsIdempotent(t *testing.T) {
	tm, fc := newFakeTimer(t)

	tm.Stop()
	require.Equal(t, State{}, tm.State())

	tm.Start(10)
	tm.Stop()
	tm.Stop()
	require.Equal(t, State{}, tm.State())

	fc.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, State{}, tm.State())
	require.Zero(t, tm.ProgressPercentage())
}

func TestAddTime(t *testing.T) {
	tm, fc := newFakeTimer(t)

	tm.AddTime(10)
	require.Equal(t, State{}, tm.State())

	tm.Start(10)
	fc.Advance(4 * time.Second)
	waitState(t, tm, func(s State) bool { return s.TimeRemaining == 6 })

	tm.AddTime(30)
	s := tm.State()
	require.Equal(t, 40, s.TotalTime)
	require.Equal(t, 36, s.TimeRemaining)

	fc.Advance(time.Second)
	waitState(t, tm, func(s State) bool { return s.TimeRemaining == 35 })

	tm.Pause()
	tm.AddTime(-100)
	s = tm.State()
	require.True(t, s.IsExpired)
	require.Equal(t, 0, s.TimeRemaining)
}

func TestTimeWarning(t *testing.T) {
	tm, fc := newFakeTimer(t)
	require.False(t, tm.TimeWarning(DefaultWarningThreshold))

	tm.Start(65)
	require.False(t, tm.TimeWarning(DefaultWarningThreshold))

	fc.Advance(5 * time.Second)
	waitState(t, tm, func(s State) bool { return s.TimeRemaining == 60 })
	require.True(t, tm.TimeWarning(DefaultWarningThreshold))

	fc.Advance(60 * time.Second)
	waitState(t, tm, func(s State) bool { return s.IsExpired })
	require.False(t, tm.TimeWarning(DefaultWarningThreshold))
}

func TestWatchReportsExpiry(t *testing.T) {
	tm, fc := newFakeTimer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := tm.Watch(ctx)
	require.Equal(t, State{}, <-states)

	tm.Start(1)
	fc.Advance(time.Second)

	deadline := time.After(waitFor)
	for {
		select {
		case s := <-states:
			if s.IsExpired {
				return
			}
		case <-deadline:
			t.Fatal("expiry was never published")
		}
	}
}

func TestIndependentInstances(t *testing.T) {
	a, fa := newFakeTimer(t)
	b, _ := newFakeTimer(t)

	a.Start(10)
	b.Start(20)
	fa.Advance(3 * time.Second)

	waitState(t, a, func(s State) bool { return s.TimeRemaining == 7 })
	require.Equal(t, 20, b.State().TimeRemaining)
}
