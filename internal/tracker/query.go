package tracker

import (
	"time"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/ports"
	"github.com/alejandrodnm/predibot/internal/timing"
)

// ActiveSnapshots returns the read-only view of every tracked prediction,
// for the console report and external dashboards.
func (t *Tracker) ActiveSnapshots() []ports.PredictionSnapshot {
	t.mu.Lock()
	entries := make([]*entry, 0, len(t.active))
	for _, e := range t.active {
		entries = append(entries, e)
	}
	t.mu.Unlock()

	now := t.now()
	snaps := make([]ports.PredictionSnapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		snaps = append(snaps, snapshotLocked(e, now))
		e.mu.Unlock()
	}
	return snaps
}

// snapshotLocked builds the read-only view of one entry. Caller holds e.mu.
func snapshotLocked(e *entry, now time.Time) ports.PredictionSnapshot {
	pred := e.pred

	phase := timing.StateWaiting
	if e.sched != nil {
		phase = e.sched.State()
	}

	outs := make([]domain.OutcomeStats, len(pred.Outcomes))
	copy(outs, pred.Outcomes)

	var decision *domain.Decision
	if pred.Decision != nil {
		d := *pred.Decision
		decision = &d
	}

	return ports.PredictionSnapshot{
		EventID:    pred.EventID,
		StreamerID: pred.StreamerID,
		Title:      pred.Title,
		Category:   pred.Category,
		Status:     pred.Status,
		Phase:      phase,
		Outcomes:   outs,
		Decision:   decision,
		Remaining:  pred.Remaining(now).Round(time.Second).String(),
	}
}
