// Package tracker owns the active-predictions map: it bridges the pub/sub
// feed to per-prediction timing loops and runs the fire path that turns a
// stable market into a submitted wager.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/messages"
	"github.com/alejandrodnm/predibot/internal/ports"
	"github.com/alejandrodnm/predibot/internal/profiler"
	"github.com/alejandrodnm/predibot/internal/stability"
	"github.com/alejandrodnm/predibot/internal/strategy"
	"github.com/alejandrodnm/predibot/internal/timing"
)

// entry pairs a tracked prediction with its timing loop. All mutations of
// the prediction go through mu; fired guards the at-most-once submit.
type entry struct {
	mu   sync.Mutex
	pred *domain.EventPrediction

	fired  atomic.Bool
	sched  *timing.Scheduler
	cancel context.CancelFunc
}

// Tracker is the dependency-injected context object: the shared map, the
// decision engine, the stability monitor, the profile service and the
// external collaborators, wired once in main and passed around explicitly.
type Tracker struct {
	engine    *strategy.Engine
	monitor   *stability.Monitor
	profiles  *profiler.Service
	submitter ports.WagerSubmitter
	provider  ports.StreamProvider
	notifier  ports.Notifier
	log       *slog.Logger

	// betConfig resolves the per-streamer strategy configuration.
	betConfig func(streamerID string) domain.BetConfig

	mu     sync.Mutex
	active map[string]*entry

	wg  sync.WaitGroup
	now func() time.Time

	// tick overrides the timing loop interval in tests. Zero means
	// duration-scaled.
	tick time.Duration
}

// Params collects the Tracker constructor dependencies.
type Params struct {
	Engine    *strategy.Engine
	Monitor   *stability.Monitor
	Profiles  *profiler.Service
	Submitter ports.WagerSubmitter
	Provider  ports.StreamProvider
	Notifier  ports.Notifier
	Logger    *slog.Logger

	BetConfig func(streamerID string) domain.BetConfig

	// Tick and Now override timing for tests.
	Tick time.Duration
	Now  func() time.Time
}

// New builds the tracker.
func New(p Params) *Tracker {
	t := &Tracker{
		engine:    p.Engine,
		monitor:   p.Monitor,
		profiles:  p.Profiles,
		submitter: p.Submitter,
		provider:  p.Provider,
		notifier:  p.Notifier,
		log:       p.Logger,
		betConfig: p.BetConfig,
		active:    make(map[string]*entry),
		now:       p.Now,
		tick:      p.Tick,
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.betConfig == nil {
		t.betConfig = func(string) domain.BetConfig {
			return domain.BetConfig{}.WithDefaults()
		}
	}
	return t
}

// Handle routes one decoded feed message. It never blocks on I/O: wager
// submission and profile updates run on their own goroutines.
func (t *Tracker) Handle(ctx context.Context, msg messages.Message) {
	switch {
	case msg.EventCreated != nil:
		t.handleCreated(ctx, msg.StreamerID, *msg.EventCreated)
	case msg.EventUpdated != nil:
		t.handleUpdated(*msg.EventUpdated)
	case msg.PredictionMade != nil:
		t.handleMade(*msg.PredictionMade)
	case msg.PredictionResult != nil:
		t.handleResult(ctx, *msg.PredictionResult)
	}
}

// Wait blocks until all spawned goroutines finish. Call after the feed is
// drained and the root context cancelled.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) handleCreated(ctx context.Context, streamerID string, m messages.EventCreated) {
	if t.lookup(m.EventID) != nil {
		return
	}

	// Profile fetch may hit the store; keep it outside the map lock.
	cfg := t.betConfig(streamerID)
	profile := t.profiles.ProfileFor(ctx, streamerID)
	cfg = applyProfile(cfg, profile)

	pred := domain.NewEventPrediction(
		m.EventID, streamerID, m.Title, m.CreatedAt, m.Window(),
		messages.ToStats(m.Outcomes), cfg,
	)
	e := &entry{pred: pred}

	t.mu.Lock()
	if _, ok := t.active[m.EventID]; ok {
		t.mu.Unlock()
		return
	}
	t.active[m.EventID] = e
	t.mu.Unlock()

	t.log.Info("tracker: prediction opened",
		"event_id", m.EventID,
		"streamer_id", streamerID,
		"title", m.Title,
		"category", string(pred.Category),
		"window", pred.Window,
	)

	if profile.ShouldSkipCategory(pred.Category) {
		t.log.Info("tracker: category in skip list, watching without betting",
			"event_id", m.EventID,
			"category", string(pred.Category),
		)
		return
	}

	t.startTiming(ctx, e, profile)
}

// startTiming spawns the per-prediction timing loop.
func (t *Tracker) startTiming(ctx context.Context, e *entry, profile domain.StreamerProfile) {
	pred := e.pred
	window := timing.EffectiveWindow(pred.Window, profile)
	th := timing.ForWindow(window).AdjustFor(profile).WithDelay(pred.Config.Delay, window)

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.sched = timing.NewScheduler(timing.Params{
		EventID:    pred.EventID,
		Window:     window,
		Started:    pred.CreatedAt,
		Thresholds: th,
		Monitor:    t.monitor,
		Logger:     t.log,
		Tick:       t.tick,
		Now:        t.now,
		Fetch: func() ([]domain.OutcomeStats, domain.PredictionStatus) {
			e.mu.Lock()
			defer e.mu.Unlock()
			outs := make([]domain.OutcomeStats, len(pred.Outcomes))
			copy(outs, pred.Outcomes)
			return outs, pred.Status
		},
		Fire: func(fctx context.Context, f timing.Firing) {
			t.fire(fctx, e, profile, f)
		},
		Abandon: func(string) {},
	})

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		e.sched.Run(loopCtx)
	}()
}

func (t *Tracker) handleUpdated(m messages.EventUpdated) {
	e := t.lookup(m.EventID)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if m.Status != "" && m.Status != string(domain.StatusActive) {
		e.pred.Status = domain.PredictionStatus(m.Status)
		// Stop the timing loop now instead of on its next tick.
		if e.cancel != nil {
			e.cancel()
		}
		return
	}
	e.pred.UpdateOutcomes(messages.ToStats(m.Outcomes))
}

func (t *Tracker) handleMade(m messages.PredictionMade) {
	e := t.lookup(m.EventID)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.pred.BetConfirmed = true
	e.mu.Unlock()
}

func (t *Tracker) handleResult(ctx context.Context, m messages.PredictionResult) {
	t.mu.Lock()
	e, ok := t.active[m.EventID]
	if !ok {
		// late or duplicate delivery, tolerated
		t.mu.Unlock()
		return
	}
	delete(t.active, m.EventID)
	t.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	t.monitor.Forget(m.EventID)

	e.mu.Lock()
	alreadyResolved := e.pred.Result != nil
	e.pred.Resolve(domain.ResultType(m.Result.Type), m.Result.PointsWon)
	rec := resolvedRecord(e.pred, m.Result, t.now())
	result := *e.pred.Result
	snap := snapshotLocked(e, t.now())
	e.mu.Unlock()

	t.log.Info("tracker: prediction resolved",
		"event_id", m.EventID,
		"result", m.Result.Type,
		"points_won", m.Result.PointsWon,
	)

	// Profile update and notification run off the message path.
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if !alreadyResolved && result.Type != domain.ResultRefund {
			t.profiles.RecordResolved(ctx, rec)
		}
		if t.notifier != nil && rec.BetPlaced {
			if err := t.notifier.NotifyResult(ctx, snap, result); err != nil {
				t.log.Warn("tracker: notify result", "err", err)
			}
		}
	}()
}

// fire runs on the timing goroutine with no shared locks held. The fired
// flag is flipped atomically before the RPC so retries and the scanner path
// can never double-submit.
func (t *Tracker) fire(ctx context.Context, e *entry, profile domain.StreamerProfile, f timing.Firing) {
	if !e.fired.CompareAndSwap(false, true) {
		return
	}
	pred := e.pred

	e.mu.Lock()
	outs := make([]domain.OutcomeStats, len(pred.Outcomes))
	copy(outs, pred.Outcomes)
	cfg := pred.Config
	status := pred.Status
	e.mu.Unlock()

	if status != domain.StatusActive {
		return
	}

	balance, err := t.provider.Balance(ctx, pred.StreamerID)
	if err != nil {
		t.log.Error("tracker: balance fetch failed, not betting",
			"event_id", pred.EventID,
			"err", err,
		)
		return
	}

	mult := profile.Recommendations.Confidence * f.Quality
	decision, ok := t.engine.Decide(outs, cfg, balance, mult)
	if !ok {
		t.log.Info("tracker: decision engine skipped",
			"event_id", pred.EventID,
			"mode", string(f.Mode),
			"balance", balance,
		)
		return
	}

	token := uuid.NewString()
	err = t.submitter.SubmitWager(ctx, pred.EventID, decision.OutcomeID, decision.Amount, token)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrAuthInvalid), errors.Is(err, ports.ErrRegionBlocked):
			t.log.Error("tracker: wager rejected, manual intervention needed",
				"event_id", pred.EventID,
				"err", err,
			)
		case errors.Is(err, ports.ErrInsufficientPoints):
			t.log.Warn("tracker: insufficient points",
				"event_id", pred.EventID,
				"amount", decision.Amount,
				"err", err,
			)
		default:
			t.log.Error("tracker: wager submit failed",
				"event_id", pred.EventID,
				"err", err,
			)
		}
		return
	}

	e.mu.Lock()
	pred.Decision = &decision
	pred.BetPlaced = true
	snap := snapshotLocked(e, t.now())
	e.mu.Unlock()

	t.log.Info("tracker: wager placed",
		"event_id", pred.EventID,
		"outcome_id", decision.OutcomeID,
		"amount", decision.Amount,
		"mode", string(f.Mode),
		"reason", decision.Reason,
	)

	if t.notifier != nil {
		if err := t.notifier.NotifyDecision(ctx, snap); err != nil {
			t.log.Warn("tracker: notify decision", "err", err)
		}
	}
}

func (t *Tracker) lookup(eventID string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[eventID]
}

// applyProfile overlays the learned recommendations on the static config:
// outside learning mode the recommended strategy variant wins.
func applyProfile(cfg domain.BetConfig, p domain.StreamerProfile) domain.BetConfig {
	rec := p.Recommendations
	if !rec.Learning && rec.Strategy != "" {
		cfg.Strategy = rec.Strategy
	}
	return cfg
}

// resolvedRecord builds the profiler record for a resolved prediction.
// Crowd correctness comes from the winning outcome when the feed names it,
// else it is inferred from our own bet on binary markets.
func resolvedRecord(pred *domain.EventPrediction, res messages.Result, now time.Time) domain.ResolvedPrediction {
	lead := domain.LeadingIndex(pred.Outcomes)

	crowdRight := false
	switch {
	case res.OutcomeID != "" && lead >= 0:
		crowdRight = pred.Outcomes[lead].ID == res.OutcomeID
	case pred.BetPlaced && pred.Decision != nil && lead >= 0:
		betOnLeader := pred.Decision.OutcomeIndex == lead
		won := res.Type == string(domain.ResultWin)
		crowdRight = betOnLeader == won
	}

	delta := 0
	if pred.Result != nil {
		delta = pred.Result.PointsGained
	}

	return domain.ResolvedPrediction{
		EventID:         pred.EventID,
		StreamerID:      pred.StreamerID,
		Category:        pred.Category,
		CrowdWasRight:   crowdRight,
		BetPlaced:       pred.BetPlaced,
		BetWon:          res.Type == string(domain.ResultWin) && pred.BetPlaced,
		PointsDelta:     delta,
		AnnouncedWindow: pred.Window,
		ActualWindow:    now.Sub(pred.CreatedAt),
		ResolvedAt:      now,
	}
}
