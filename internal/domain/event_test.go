package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrediction() *EventPrediction {
	outs := []OutcomeStats{
		{ID: "yes", TotalUsers: 10, TotalPoints: 1000},
		{ID: "no", TotalUsers: 10, TotalPoints: 1000},
	}
	return NewEventPrediction("ev1", "str1", "will we win this game?", time.Now(), 120*time.Second, outs, BetConfig{}.WithDefaults())
}

func TestNewEventPrediction(t *testing.T) {
	p := newPrediction()
	assert.Equal(t, StatusActive, p.Status)
	assert.Equal(t, CategoryPerformance, p.Category) // "win" en el título
	assert.InDelta(t, 50.0, p.Outcomes[0].PercentageUsers, 0.001)
}

func TestUpdateOutcomes_RecomputesDerived(t *testing.T) {
	p := newPrediction()
	p.UpdateOutcomes([]OutcomeStats{
		{ID: "yes", TotalUsers: 30, TotalPoints: 9000},
		{ID: "no", TotalUsers: 70, TotalPoints: 1000},
	})
	assert.InDelta(t, 30.0, p.Outcomes[0].PercentageUsers, 0.001)
	assert.InDelta(t, 10.0, p.Outcomes[0].Odds, 0.001)
}

func TestUpdateOutcomes_IgnoredAfterBetPlaced(t *testing.T) {
	p := newPrediction()
	p.BetPlaced = true
	before := p.Outcomes[0].TotalUsers
	p.UpdateOutcomes([]OutcomeStats{{ID: "yes", TotalUsers: 999}, {ID: "no"}})
	assert.Equal(t, before, p.Outcomes[0].TotalUsers)
}

func TestResolve_WinComputesGain(t *testing.T) {
	p := newPrediction()
	p.BetPlaced = true
	p.Decision = &Decision{OutcomeIndex: 0, OutcomeID: "yes", Amount: 500}

	p.Resolve(ResultWin, 1200)
	require.NotNil(t, p.Result)
	assert.Equal(t, StatusResolved, p.Status)
	assert.Equal(t, 700, p.Result.PointsGained) // 1200 ganados - 500 apostados
	assert.True(t, p.Terminal())
}

func TestResolve_LoseNegativeGain(t *testing.T) {
	p := newPrediction()
	p.BetPlaced = true
	p.Decision = &Decision{Amount: 500}

	p.Resolve(ResultLose, 0)
	assert.Equal(t, -500, p.Result.PointsGained)
}

func TestResolve_RefundZeroGain(t *testing.T) {
	p := newPrediction()
	p.BetPlaced = true
	p.Decision = &Decision{Amount: 500}

	p.Resolve(ResultRefund, 500)
	assert.Equal(t, StatusRefunded, p.Status)
	assert.Equal(t, 0, p.Result.PointsGained)
}

func TestResolve_Idempotent(t *testing.T) {
	p := newPrediction()
	p.BetPlaced = true
	p.Decision = &Decision{Amount: 500}

	p.Resolve(ResultWin, 1200)
	first := *p.Result
	p.Resolve(ResultLose, 0) // entrega duplicada/contradictoria: no-op
	assert.Equal(t, first, *p.Result)
}

func TestRemaining(t *testing.T) {
	p := newPrediction()
	now := p.CreatedAt.Add(30 * time.Second)
	assert.Equal(t, 90*time.Second, p.Remaining(now))
	assert.Equal(t, time.Duration(0), p.Remaining(p.CreatedAt.Add(10*time.Minute)))
}

func TestResolvedPrediction_EarlyClose(t *testing.T) {
	rec := ResolvedPrediction{AnnouncedWindow: 120 * time.Second, ActualWindow: 60 * time.Second}
	assert.True(t, rec.EarlyClose())
	rec.ActualWindow = 119 * time.Second
	assert.False(t, rec.EarlyClose()) // 99% de la ventana no es cierre temprano
}

func TestClassifyTitle(t *testing.T) {
	assert.Equal(t, CategoryPerformance, ClassifyTitle("Will we WIN this ranked match?"))
	assert.Equal(t, CategoryObjective, ClassifyTitle("How many kills this game?"))
	assert.Equal(t, CategoryTroll, ClassifyTitle("gift sub roulette"))
	assert.Equal(t, CategoryOther, ClassifyTitle("???"))
}
