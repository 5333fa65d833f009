package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func resolvedRec(cat Category, crowdRight bool) ResolvedPrediction {
	return ResolvedPrediction{
		EventID:         "ev",
		StreamerID:      "str",
		Category:        cat,
		CrowdWasRight:   crowdRight,
		AnnouncedWindow: 120 * time.Second,
		ActualWindow:    120 * time.Second,
		ResolvedAt:      time.Now(),
	}
}

func TestDefaultProfile_LearningMode(t *testing.T) {
	p := DefaultProfile("nuevo")
	assert.True(t, p.Recommendations.Learning)
	assert.Equal(t, StrategyCrowdWisdom, p.Recommendations.Strategy)
	assert.InDelta(t, 0.8, p.Recommendations.Confidence, 0.001)
}

func TestApply_CategoryCounters(t *testing.T) {
	p := DefaultProfile("str")
	p.Apply(resolvedRec(CategoryObjective, true))
	p.Apply(resolvedRec(CategoryObjective, false))

	stats := p.Categories[CategoryObjective]
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 1, stats.CrowdRight)
	assert.InDelta(t, 0.5, stats.Accuracy(), 0.001)
}

func TestApply_Ledger(t *testing.T) {
	p := DefaultProfile("str")

	win := resolvedRec(CategoryEvent, true)
	win.BetPlaced = true
	win.BetWon = true
	win.PointsDelta = 450
	p.Apply(win)

	loss := resolvedRec(CategoryEvent, false)
	loss.BetPlaced = true
	loss.PointsDelta = -300
	p.Apply(loss)

	assert.Equal(t, 2, p.Ledger.BetsPlaced)
	assert.Equal(t, 1, p.Ledger.BetsWon)
	assert.Equal(t, 450, p.Ledger.PointsWon)
	assert.Equal(t, 300, p.Ledger.PointsLost)
}

func TestRecompute_StaysLearningWithSmallSample(t *testing.T) {
	p := DefaultProfile("str")
	for range 5 {
		p.Apply(resolvedRec(CategoryOther, true))
	}
	p.RecomputeRecommendations()
	assert.True(t, p.Recommendations.Learning)
}

func TestRecompute_FollowCrowdWhenAccurate(t *testing.T) {
	p := DefaultProfile("str")
	for range 9 {
		p.Apply(resolvedRec(CategoryPerformance, true))
	}
	p.Apply(resolvedRec(CategoryPerformance, false))

	p.RecomputeRecommendations()
	assert.False(t, p.Recommendations.Learning)
	assert.Equal(t, StrategyFollowCrowd, p.Recommendations.Strategy) // 90% > 70%
	assert.Greater(t, p.Recommendations.Confidence, 1.0)
}

func TestRecompute_ContrarianWhenInaccurate(t *testing.T) {
	p := DefaultProfile("str")
	for range 8 {
		p.Apply(resolvedRec(CategoryTroll, false))
	}
	for range 2 {
		p.Apply(resolvedRec(CategoryTroll, true))
	}

	p.RecomputeRecommendations()
	assert.Equal(t, StrategyContrarian, p.Recommendations.Strategy) // 20% < 45%
	// troll con precisión 20% y muestra ≥ 8 ⇒ en la skip-list
	assert.True(t, p.ShouldSkipCategory(CategoryTroll))
	assert.False(t, p.ShouldSkipCategory(CategoryObjective))
}

func TestRecompute_SharpOnlyInBetween(t *testing.T) {
	p := DefaultProfile("str")
	for range 6 {
		p.Apply(resolvedRec(CategoryEvent, true))
	}
	for range 4 {
		p.Apply(resolvedRec(CategoryEvent, false))
	}

	p.RecomputeRecommendations()
	assert.Equal(t, StrategySharpOnly, p.Recommendations.Strategy) // 60%
}

func TestClosePattern_EarlyCloser(t *testing.T) {
	p := DefaultProfile("str")
	for range 4 {
		rec := resolvedRec(CategoryOther, true)
		rec.ActualWindow = 60 * time.Second // mitad de la ventana anunciada
		p.Apply(rec)
	}

	assert.Equal(t, 4, p.Close.Samples)
	assert.Equal(t, 4, p.Close.EarlyCloses)
	assert.True(t, p.Close.EarlyCloser())
	assert.InDelta(t, 0.5, p.Close.AvgCloseRatio, 0.001)
}

func TestClosePattern_OnTimeNotEarly(t *testing.T) {
	p := DefaultProfile("str")
	for range 4 {
		p.Apply(resolvedRec(CategoryOther, true))
	}
	assert.False(t, p.Close.EarlyCloser())
}
