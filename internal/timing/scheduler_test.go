package timing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/stability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

// fakeClock advances a fixed step on every fetch, so each tick observes the
// prediction a deterministic amount of time further in.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0), step: step}
}

func (c *fakeClock) start() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func split(users1, pts1, users2, pts2 int) []domain.OutcomeStats {
	outs := []domain.OutcomeStats{
		{ID: "a", TotalUsers: users1, TotalPoints: pts1},
		{ID: "b", TotalUsers: users2, TotalPoints: pts2},
	}
	domain.RecomputeDerived(outs)
	return outs
}

type runResult struct {
	fired     *Firing
	abandoned string
}

// runScheduler drives a scheduler to completion against a scripted fetch.
func runScheduler(t *testing.T, window time.Duration, clock *fakeClock, fetch func() ([]domain.OutcomeStats, domain.PredictionStatus)) runResult {
	t.Helper()
	return runSchedulerWith(t, window, ForWindow(window), clock, fetch)
}

func runSchedulerWith(t *testing.T, window time.Duration, th Thresholds, clock *fakeClock, fetch func() ([]domain.OutcomeStats, domain.PredictionStatus)) runResult {
	t.Helper()

	var res runResult
	done := make(chan struct{})

	s := NewScheduler(Params{
		EventID:    "evt-1",
		Window:     window,
		Started:    clock.start(),
		Thresholds: th,
		Monitor:    stability.NewMonitor(stability.Config{}),
		Fetch: func() ([]domain.OutcomeStats, domain.PredictionStatus) {
			clock.advance()
			return fetch()
		},
		Fire: func(_ context.Context, f Firing) {
			res.fired = &f
		},
		Abandon: func(reason string) {
			res.abandoned = reason
		},
		Tick: time.Millisecond,
		Now:  clock.now,
	})

	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not finish")
	}
	return res
}

// --- thresholds ---

func TestForWindow_Tiers(t *testing.T) {
	assert.Equal(t, 40, ForWindow(30*time.Second).MinUsers)
	assert.Equal(t, 75, ForWindow(120*time.Second).MinUsers)
	assert.Equal(t, 120, ForWindow(600*time.Second).MinUsers)
	assert.Equal(t, 200, ForWindow(time.Hour).MinUsers)
}

func TestAdjustFor_EarlyCloser(t *testing.T) {
	base := ForWindow(120 * time.Second)

	p := domain.DefaultProfile("s1")
	p.Close = domain.ClosePattern{Samples: 5, EarlyCloses: 4, AvgCloseRatio: 0.7}

	adj := base.AdjustFor(p)
	assert.Equal(t, 30*time.Second, adj.FallbackHorizon) // 20s × 1.5
	assert.Less(t, adj.MinUsers, base.MinUsers)
}

func TestAdjustFor_HighTraffic(t *testing.T) {
	base := ForWindow(120 * time.Second)

	p := domain.DefaultProfile("s1")
	p.Categories[domain.CategoryPerformance] = domain.CategoryStats{Total: 40, Resolved: 40, CrowdRight: 25}

	adj := base.AdjustFor(p)
	assert.Greater(t, adj.MinUsers, base.MinUsers)
}

func TestWithDelay_ResolvesHorizon(t *testing.T) {
	window := 120 * time.Second
	base := ForWindow(window) // 20s horizon

	fromEnd := base.WithDelay(domain.DelaySpec{Mode: domain.DelayFromEnd, Value: 30}, window)
	assert.Equal(t, 30*time.Second, fromEnd.FallbackHorizon)

	fromStart := base.WithDelay(domain.DelaySpec{Mode: domain.DelayFromStart, Value: 90}, window)
	assert.Equal(t, 30*time.Second, fromStart.FallbackHorizon)

	pct := base.WithDelay(domain.DelaySpec{Mode: domain.DelayPercentage, Value: 0.75}, window)
	assert.Equal(t, 30*time.Second, pct.FallbackHorizon)

	// the tier horizon is the floor, half the window the cap
	late := base.WithDelay(domain.DelaySpec{Mode: domain.DelayFromEnd, Value: 5}, window)
	assert.Equal(t, base.FallbackHorizon, late.FallbackHorizon)

	early := base.WithDelay(domain.DelaySpec{Mode: domain.DelayPercentage, Value: 0.1}, window)
	assert.Equal(t, 60*time.Second, early.FallbackHorizon)

	unset := base.WithDelay(domain.DelaySpec{}, window)
	assert.Equal(t, base.FallbackHorizon, unset.FallbackHorizon)
}

func TestEffectiveWindow(t *testing.T) {
	p := domain.DefaultProfile("s1")
	assert.Equal(t, 120*time.Second, EffectiveWindow(120*time.Second, p))

	p.Close = domain.ClosePattern{Samples: 5, EarlyCloses: 4, AvgCloseRatio: 0.5}
	assert.Equal(t, 60*time.Second, EffectiveWindow(120*time.Second, p))
}

func TestQuality_Tiers(t *testing.T) {
	th := Thresholds{MinUsers: 100}

	assert.Equal(t, 1.0, th.Quality(100))
	assert.Equal(t, 0.7, th.Quality(50))
	assert.Equal(t, 0.4, th.Quality(20))
	assert.Equal(t, 0.0, th.Quality(19))
}

func TestTickInterval_Clamped(t *testing.T) {
	assert.Equal(t, 3*time.Second, TickInterval(30*time.Second))
	assert.Equal(t, 6*time.Second, TickInterval(120*time.Second))
	assert.Equal(t, 15*time.Second, TickInterval(time.Hour))
}

// --- scheduler ---

func TestRun_FiresReadyOnStableMarket(t *testing.T) {
	clock := newFakeClock(5 * time.Second)

	res := runScheduler(t, 120*time.Second, clock, func() ([]domain.OutcomeStats, domain.PredictionStatus) {
		return split(75, 7500, 75, 7500), domain.StatusActive
	})

	require.NotNil(t, res.fired)
	assert.Equal(t, StateReady, res.fired.Mode)
	assert.Equal(t, 1.0, res.fired.Quality)
	assert.Equal(t, 150, res.fired.Snapshot.TotalUsers)
	assert.Empty(t, res.abandoned)
}

func TestRun_SharpEarlyFiresImmediately(t *testing.T) {
	clock := newFakeClock(5 * time.Second)

	// minority at 20% share with 3× the average stake, seen at t=5s
	res := runScheduler(t, 120*time.Second, clock, func() ([]domain.OutcomeStats, domain.PredictionStatus) {
		return split(20, 6000, 80, 8000), domain.StatusActive
	})

	require.NotNil(t, res.fired)
	assert.Equal(t, StateSharpEarly, res.fired.Mode)
	assert.Equal(t, sharpEarlyQuality, res.fired.Quality)
}

func TestRun_FallbackWithReducedQuality(t *testing.T) {
	clock := newFakeClock(25 * time.Second)

	// 30 users never reaches the 40-user target of a 60s window; at
	// t=50s the 10s fallback horizon is hit
	res := runScheduler(t, 60*time.Second, clock, func() ([]domain.OutcomeStats, domain.PredictionStatus) {
		return split(15, 1500, 15, 1500), domain.StatusActive
	})

	require.NotNil(t, res.fired)
	assert.Equal(t, StateFallback, res.fired.Mode)
	assert.Equal(t, 0.7, res.fired.Quality) // ≥ minUsers/2
}

func TestRun_DelayMovesFallbackEarlier(t *testing.T) {
	window := 120 * time.Second

	// thin but stable market: never READY, fires on the fallback horizon
	run := func(delay domain.DelaySpec) runResult {
		clock := newFakeClock(10 * time.Second)
		th := ForWindow(window).WithDelay(delay, window)
		return runSchedulerWith(t, window, th, clock, func() ([]domain.OutcomeStats, domain.PredictionStatus) {
			return split(30, 3000, 30, 3000), domain.StatusActive
		})
	}

	eager := run(domain.DelaySpec{Mode: domain.DelayFromEnd, Value: 50})
	patient := run(domain.DelaySpec{Mode: domain.DelayFromEnd, Value: 30})

	require.NotNil(t, eager.fired)
	require.NotNil(t, patient.fired)
	assert.Equal(t, StateFallback, eager.fired.Mode)
	assert.Equal(t, StateFallback, patient.fired.Mode)
	assert.Equal(t, 70*time.Second, eager.fired.Snapshot.Elapsed)
	assert.Equal(t, 90*time.Second, patient.fired.Snapshot.Elapsed)
}

func TestRun_AbandonsChaoticFallback(t *testing.T) {
	clock := newFakeClock(25 * time.Second)

	// majority flips every observation; at the fallback horizon the
	// unstable-consensus check refuses to bet
	flip := false
	res := runScheduler(t, 120*time.Second, clock, func() ([]domain.OutcomeStats, domain.PredictionStatus) {
		flip = !flip
		if flip {
			return split(90, 9000, 60, 6000), domain.StatusActive
		}
		return split(60, 6000, 90, 9000), domain.StatusActive
	})

	assert.Nil(t, res.fired)
	assert.Equal(t, "unstable consensus", res.abandoned)
}

func TestRun_AbandonsWhenTooThinTooLate(t *testing.T) {
	clock := newFakeClock(56 * time.Second)

	// 8 users with 4s left on a 60s window: below the absolute floor
	res := runScheduler(t, 60*time.Second, clock, func() ([]domain.OutcomeStats, domain.PredictionStatus) {
		return split(5, 500, 3, 300), domain.StatusActive
	})

	assert.Nil(t, res.fired)
	assert.Equal(t, "volume never sufficient", res.abandoned)
}

func TestRun_AbandonsOnClosedWindow(t *testing.T) {
	clock := newFakeClock(70 * time.Second)

	res := runScheduler(t, 60*time.Second, clock, func() ([]domain.OutcomeStats, domain.PredictionStatus) {
		return split(100, 10000, 100, 10000), domain.StatusActive
	})

	assert.Nil(t, res.fired)
	assert.Equal(t, "window closed before firing", res.abandoned)
}

func TestRun_AbandonsWhenNoLongerActive(t *testing.T) {
	clock := newFakeClock(5 * time.Second)

	res := runScheduler(t, 120*time.Second, clock, func() ([]domain.OutcomeStats, domain.PredictionStatus) {
		return split(75, 7500, 75, 7500), domain.StatusLocked
	})

	assert.Nil(t, res.fired)
	assert.Equal(t, "prediction no longer active", res.abandoned)
}

func TestRun_CancellationAbandonsCleanly(t *testing.T) {
	clock := newFakeClock(time.Millisecond)
	monitor := stability.NewMonitor(stability.Config{})

	var abandoned string
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(Params{
		EventID:    "evt-1",
		Window:     time.Hour, // never reaches any horizon on its own
		Started:    clock.start(),
		Thresholds: ForWindow(time.Hour),
		Monitor:    monitor,
		Fetch: func() ([]domain.OutcomeStats, domain.PredictionStatus) {
			return split(1, 100, 1, 100), domain.StatusActive
		},
		Fire:    func(context.Context, Firing) { t.Error("must not fire") },
		Abandon: func(reason string) { abandoned = reason },
		Tick:    time.Millisecond,
		Now:     clock.now,
	})

	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}

	assert.Equal(t, "cancelled", abandoned)
	assert.Equal(t, StateAbandoned, s.State())

	_, ok := monitor.Last("evt-1")
	assert.False(t, ok, "snapshot history must be freed")
}
