package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/alejandrodnm/predibot/internal/adapters/notify"
	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() ports.PredictionSnapshot {
	outs := []domain.OutcomeStats{
		{ID: "o1", Title: "Yes", TotalUsers: 60, TotalPoints: 6000},
		{ID: "o2", Title: "No", TotalUsers: 40, TotalPoints: 4000},
	}
	domain.RecomputeDerived(outs)
	return ports.PredictionSnapshot{
		EventID:    "evt-1",
		StreamerID: "streamer-1",
		Title:      "win the ranked game?",
		Category:   domain.CategoryPerformance,
		Status:     domain.StatusActive,
		Outcomes:   outs,
		Decision: &domain.Decision{
			OutcomeIndex: 0,
			OutcomeID:    "o1",
			Amount:       500,
			Confidence:   1.2,
			Reason:       "strong consensus",
		},
		Remaining: "1m30s",
	}
}

func TestNotifyDecision(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	require.NoError(t, c.NotifyDecision(context.Background(), snapshot()))

	out := buf.String()
	assert.Contains(t, out, "BET evt-1")
	assert.Contains(t, out, "500 pts")
	assert.Contains(t, out, `"Yes"`)
}

func TestNotifyResult_Win(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	err := c.NotifyResult(context.Background(), snapshot(), domain.Result{
		Type: domain.ResultWin, PointsWon: 1200, PointsGained: 700,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "WIN")
	assert.Contains(t, buf.String(), "+700")
}

func TestReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	require.NoError(t, c.Report(context.Background(), nil, nil))
	assert.Contains(t, buf.String(), "no active predictions")
}

func TestReport_TruncatesLongTitleOnRunes(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	snap := snapshot()
	snap.Title = strings.Repeat("¿ñá?", 20)

	require.NoError(t, c.Report(context.Background(), []ports.PredictionSnapshot{snap}, nil))

	out := buf.String()
	assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
	assert.Contains(t, out, "…")
}

func TestReport_Tables(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	p := domain.DefaultProfile("streamer-1")
	err := c.Report(context.Background(), []ports.PredictionSnapshot{snapshot()}, []domain.StreamerProfile{p})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "evt-1")
	assert.Contains(t, out, "streamer-1")
	assert.Contains(t, out, "learning")
}
