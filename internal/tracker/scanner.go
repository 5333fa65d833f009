package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/messages"
	"github.com/alejandrodnm/predibot/internal/ports"
)

const (
	defaultScanInterval = 30 * time.Second
	defaultStaleGrace   = 2 * time.Minute
)

// Scanner is the polling redundancy path: it discovers predictions the feed
// missed by asking the platform directly, and sweeps entries whose window
// elapsed without ever seeing a result message.
type Scanner struct {
	tracker  *Tracker
	provider ports.StreamProvider
	log      *slog.Logger

	streamers []string
	interval  time.Duration
	grace     time.Duration
}

// NewScanner builds the redundancy scanner for the given streamers.
func NewScanner(t *Tracker, provider ports.StreamProvider, streamers []string, interval, grace time.Duration, log *slog.Logger) *Scanner {
	if interval <= 0 {
		interval = defaultScanInterval
	}
	if grace <= 0 {
		grace = defaultStaleGrace
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		tracker:   t,
		provider:  provider,
		log:       log,
		streamers: streamers,
		interval:  interval,
		grace:     grace,
	}
}

// Run polls until ctx is done.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Scanner) cycle(ctx context.Context) {
	swept := s.tracker.sweepStale(s.grace)
	for _, id := range swept {
		s.log.Warn("scanner: swept stale prediction", "event_id", id)
	}

	for _, streamerID := range s.streamers {
		state, err := s.provider.StreamState(ctx, streamerID)
		if err != nil {
			s.log.Warn("scanner: stream state fetch failed",
				"streamer_id", streamerID,
				"err", err,
			)
			continue
		}
		if !state.Live || state.Active == nil {
			continue
		}
		if s.tracker.lookup(state.Active.EventID) != nil {
			continue
		}

		s.log.Info("scanner: discovered prediction missed by feed",
			"streamer_id", streamerID,
			"event_id", state.Active.EventID,
		)
		s.tracker.trackDiscovered(ctx, streamerID, *state.Active)
	}
}

// trackDiscovered registers a prediction found by polling, reusing the
// feed-message path so the timing loop starts the same way.
func (t *Tracker) trackDiscovered(ctx context.Context, streamerID string, ap ports.ActivePrediction) {
	outs := make([]messages.Outcome, len(ap.Outcomes))
	for i, o := range ap.Outcomes {
		outs[i] = messages.Outcome{
			ID:          o.ID,
			Title:       o.Title,
			TotalUsers:  o.TotalUsers,
			TotalPoints: o.TotalPoints,
			TopPoints:   o.TopPoints,
		}
	}
	t.handleCreated(ctx, streamerID, messages.EventCreated{
		EventID:       ap.EventID,
		Title:         ap.Title,
		CreatedAt:     ap.CreatedAt,
		WindowSeconds: int(ap.Window / time.Second),
		Status:        string(domain.StatusActive),
		Outcomes:      outs,
	})
}

// sweepStale abandons and removes entries whose announced window elapsed
// more than grace ago with no result message. Returns the swept event ids.
func (t *Tracker) sweepStale(grace time.Duration) []string {
	now := t.now()

	t.mu.Lock()
	var stale []*entry
	for _, e := range t.active {
		e.mu.Lock()
		expired := now.Sub(e.pred.CreatedAt) > e.pred.Window+grace
		e.mu.Unlock()
		if expired {
			stale = append(stale, e)
		}
	}
	for _, e := range stale {
		delete(t.active, e.pred.EventID)
	}
	t.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, e := range stale {
		if e.cancel != nil {
			e.cancel()
		}
		t.monitor.Forget(e.pred.EventID)

		e.mu.Lock()
		e.pred.Status = domain.StatusCanceled
		e.mu.Unlock()

		ids = append(ids, e.pred.EventID)
	}
	return ids
}
