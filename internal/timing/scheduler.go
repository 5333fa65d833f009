// Package timing runs the wait-then-fire schedule of one active prediction:
// it polls the live outcome stats, feeds the stability monitor and decides
// the moment to hand off to the decision engine.
package timing

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/stability"
)

// State is the scheduler phase for one prediction.
type State string

const (
	StateWaiting    State = "WAITING"
	StateReady      State = "READY"
	StateFallback   State = "FALLBACK"
	StateSharpEarly State = "SHARP_EARLY"
	StateFired      State = "FIRED"
	StateAbandoned  State = "ABANDONED"
)

// Early sharp-signal detection window and gates.
const (
	sharpEarlyMinElapsed = 5 * time.Second
	sharpEarlyMaxElapsed = 15 * time.Second
	sharpEarlyMaxShare   = 35.0
	sharpEarlyMinUsers   = 10
	sharpEarlyRatio      = 3.0
	sharpEarlyQuality    = 0.6
)

// Firing is what the scheduler hands to the fire callback: the mode it fired
// in and the data-quality multiplier for the decision stage.
type Firing struct {
	Mode     State
	Quality  float64
	Snapshot stability.Snapshot
}

// Scheduler drives the timing loop for a single prediction. One goroutine
// per active prediction; the loop exits on fire, abandon or ctx cancel.
type Scheduler struct {
	eventID string
	window  time.Duration // effective window, profile-compressed
	started time.Time
	th      Thresholds

	monitor *stability.Monitor
	fetch   func() ([]domain.OutcomeStats, domain.PredictionStatus)
	fire    func(ctx context.Context, f Firing)
	abandon func(reason string)

	log  *slog.Logger
	tick time.Duration
	now  func() time.Time

	state atomic.Value // State
}

// Params collects the scheduler constructor arguments.
type Params struct {
	EventID string
	Window  time.Duration
	Started time.Time

	Thresholds Thresholds
	Monitor    *stability.Monitor

	// Fetch reads the prediction's current outcomes and status; it is called
	// once per tick and must not block on I/O.
	Fetch func() ([]domain.OutcomeStats, domain.PredictionStatus)

	// Fire is invoked exactly once when the loop decides to bet. It runs on
	// the timing goroutine with no shared locks held.
	Fire func(ctx context.Context, f Firing)

	// Abandon is invoked when the loop gives up without betting.
	Abandon func(reason string)

	Logger *slog.Logger

	// Tick overrides the duration-scaled tick interval. Zero means derive
	// it from Window.
	Tick time.Duration

	// Now overrides the clock.
	Now func() time.Time
}

// NewScheduler builds the loop for one prediction.
func NewScheduler(p Params) *Scheduler {
	s := &Scheduler{
		eventID: p.EventID,
		window:  p.Window,
		started: p.Started,
		th:      p.Thresholds,
		monitor: p.Monitor,
		fetch:   p.Fetch,
		fire:    p.Fire,
		abandon: p.Abandon,
		log:     p.Logger,
		tick:    p.Tick,
		now:     p.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.tick <= 0 {
		s.tick = TickInterval(p.Window)
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.state.Store(StateWaiting)
	return s
}

// State returns the current phase. Safe to call from other goroutines.
func (s *Scheduler) State() State {
	return s.state.Load().(State)
}

// Run executes the timing loop until fire, abandon or cancellation.
// Cancellation abandons cleanly: no wager, snapshot history freed.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.log.Debug("timing loop started",
		"event_id", s.eventID,
		"window", s.window,
		"tick", s.tick,
	)

	for {
		select {
		case <-ctx.Done():
			s.giveUp("cancelled")
			return
		case <-ticker.C:
			if s.step(ctx) {
				return
			}
		}
	}
}

// step runs one tick. Returns true when the loop is done.
func (s *Scheduler) step(ctx context.Context) bool {
	outs, status := s.fetch()
	if status != domain.StatusActive {
		s.giveUp("prediction no longer active")
		return true
	}

	elapsed := s.now().Sub(s.started)
	remaining := s.window - elapsed

	verdict := s.monitor.Observe(s.eventID, outs, elapsed)
	users := verdict.Snapshot.TotalUsers

	if remaining <= 0 {
		s.giveUp("window closed before firing")
		return true
	}

	// Too late and too thin to ever bet responsibly.
	if remaining <= s.th.FallbackHorizon/2 && users < s.th.AbsoluteFloor {
		s.giveUp("volume never sufficient")
		return true
	}

	// Stable market with the duration-scaled volume target met.
	if verdict.Ready && users >= s.th.MinUsers {
		s.fireAs(ctx, StateReady, 1.0, *verdict.Snapshot)
		return true
	}

	// Early sharp money: fire immediately at reduced confidence.
	if elapsed >= sharpEarlyMinElapsed && elapsed <= sharpEarlyMaxElapsed {
		if idx, ok := sharpEarlySignal(outs); ok {
			s.log.Info("early sharp signal",
				"event_id", s.eventID,
				"outcome_index", idx,
				"elapsed", elapsed,
			)
			s.fireAs(ctx, StateSharpEarly, sharpEarlyQuality, *verdict.Snapshot)
			return true
		}
	}

	// Out of patience: fire with whatever data quality we have, unless the
	// market is genuinely chaotic.
	if remaining <= s.th.FallbackHorizon {
		if s.monitor.Unstable(s.eventID) {
			s.giveUp("unstable consensus")
			return true
		}
		quality := s.th.Quality(users)
		if quality == 0 {
			s.giveUp("data quality too low")
			return true
		}
		s.fireAs(ctx, StateFallback, quality, *verdict.Snapshot)
		return true
	}

	s.log.Debug("waiting",
		"event_id", s.eventID,
		"reason", verdict.Reason,
		"users", users,
		"remaining", remaining,
	)
	return false
}

func (s *Scheduler) fireAs(ctx context.Context, mode State, quality float64, snap stability.Snapshot) {
	s.state.Store(mode)
	s.log.Info("firing",
		"event_id", s.eventID,
		"mode", string(mode),
		"quality", quality,
		"users", snap.TotalUsers,
	)
	s.fire(ctx, Firing{Mode: mode, Quality: quality, Snapshot: snap})
	s.state.Store(StateFired)
}

func (s *Scheduler) giveUp(reason string) {
	s.state.Store(StateAbandoned)
	s.monitor.Forget(s.eventID)
	s.log.Info("abandoned", "event_id", s.eventID, "reason", reason)
	if s.abandon != nil {
		s.abandon(reason)
	}
}

// sharpEarlySignal looks for a minority (<35% share, ≥10 users) whose
// average stake is at least 3× the rest of the field.
func sharpEarlySignal(outs []domain.OutcomeStats) (int, bool) {
	if len(outs) < 2 {
		return 0, false
	}
	for i, o := range outs {
		if o.PercentageUsers >= sharpEarlyMaxShare || o.TotalUsers < sharpEarlyMinUsers {
			continue
		}
		rest := domain.RestAvgStake(outs, i)
		if rest > 0 && o.AvgStake() >= sharpEarlyRatio*rest {
			return i, true
		}
	}
	return 0, false
}
