package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- Skip: puertas ordenadas con cortocircuito ---

func TestSkip_MinVotersFirst(t *testing.T) {
	// minVoters=50 y 30 usuarios ⇒ skip, da igual el resto de settings
	cfg := BetConfig{
		MinVoters:     50,
		SkipIfDivided: true,
		Filter:        &FilterCondition{By: FilterTotalUsers, Where: OpGT, Threshold: 0},
	}.WithDefaults()

	outs := outcomes2(10, 1000, 20, 2000)
	skip, value := cfg.Skip(outs, 1)
	assert.True(t, skip)
	assert.Equal(t, 30.0, value)
}

func TestSkip_DividedMarket(t *testing.T) {
	cfg := BetConfig{SkipIfDivided: true}.WithDefaults()

	// 50/50 exacto ⇒ skip
	outs := outcomes2(100, 10000, 100, 10000)
	skip, value := cfg.Skip(outs, 0)
	assert.True(t, skip)
	assert.InDelta(t, 50.0, value, 0.001)

	// 60/40 ⇒ no dividido
	outs = outcomes2(120, 10000, 80, 10000)
	skip, _ = cfg.Skip(outs, 0)
	assert.False(t, skip)
}

func TestSkip_DividedBandEdges(t *testing.T) {
	cfg := BetConfig{SkipIfDivided: true}.WithDefaults()

	// líder al 55% exacto ⇒ dentro de la banda
	outs := outcomes2(55, 0, 45, 0)
	skip, _ := cfg.Skip(outs, 0)
	assert.True(t, skip)

	// líder al 56% ⇒ fuera
	outs = outcomes2(56, 0, 44, 0)
	skip, _ = cfg.Skip(outs, 0)
	assert.False(t, skip)
}

func TestSkip_FilterSatisfied(t *testing.T) {
	cfg := BetConfig{
		Filter: &FilterCondition{By: FilterTotalPoints, Where: OpGTE, Threshold: 5000},
	}.WithDefaults()

	outs := outcomes2(50, 3000, 50, 3000) // Σ puntos = 6000 ≥ 5000
	skip, value := cfg.Skip(outs, 0)
	assert.False(t, skip)
	assert.Equal(t, 6000.0, value)
}

func TestSkip_FilterNotSatisfied(t *testing.T) {
	cfg := BetConfig{
		Filter: &FilterCondition{By: FilterDecisionUsers, Where: OpGT, Threshold: 100},
	}.WithDefaults()

	outs := outcomes2(80, 3000, 60, 3000)
	skip, value := cfg.Skip(outs, 1) // opción 1: 60 usuarios, no > 100
	assert.True(t, skip)
	assert.Equal(t, 60.0, value)
}

func TestSkip_NoFilterNeverSkips(t *testing.T) {
	cfg := BetConfig{}.WithDefaults()
	outs := outcomes2(3, 50, 2, 10)
	skip, _ := cfg.Skip(outs, 0)
	assert.False(t, skip)
}

// --- FilterCondition ---

func TestFilterCondition_Operators(t *testing.T) {
	f := FilterCondition{Threshold: 10}

	f.Where = OpGT
	assert.True(t, f.Satisfied(11))
	assert.False(t, f.Satisfied(10))

	f.Where = OpGTE
	assert.True(t, f.Satisfied(10))

	f.Where = OpLT
	assert.True(t, f.Satisfied(9))
	assert.False(t, f.Satisfied(10))

	f.Where = OpLTE
	assert.True(t, f.Satisfied(10))
	assert.False(t, f.Satisfied(11))
}

// --- clamp y stealth ---

func TestClampAmount(t *testing.T) {
	cfg := BetConfig{MaxPoints: 1000, MinPoints: 10}
	assert.Equal(t, 1000, cfg.ClampAmount(5000))
	assert.Equal(t, 10, cfg.ClampAmount(3))
	assert.Equal(t, 500, cfg.ClampAmount(500))
}

func TestStealthShave_AboveTop(t *testing.T) {
	// cantidad ≥ top ⇒ resultado estrictamente menor que top y ≥ 10
	for range 50 {
		got := StealthShave(5000, 4000)
		assert.Less(t, got, 4000)
		assert.GreaterOrEqual(t, got, 3995) // top - 5 como mucho
	}
}

func TestStealthShave_BelowTopUntouched(t *testing.T) {
	assert.Equal(t, 500, StealthShave(500, 4000))
}

func TestStealthShave_FloorAtMinWager(t *testing.T) {
	for range 50 {
		got := StealthShave(20, 12)
		assert.GreaterOrEqual(t, got, MinWager)
		assert.Less(t, got, 12)
	}
}

func TestStealthShave_ZeroTopIgnored(t *testing.T) {
	assert.Equal(t, 500, StealthShave(500, 0))
}

// --- defaults ---

func TestWithDefaults(t *testing.T) {
	cfg := BetConfig{}.WithDefaults()
	assert.Equal(t, StrategyCrowdWisdom, cfg.Strategy)
	assert.Equal(t, DefaultPercentage, cfg.Percentage)
	assert.Equal(t, DefaultPercentageGap, cfg.PercentageGap)
	assert.Equal(t, DefaultMaxPoints, cfg.MaxPoints)
	assert.Equal(t, MinWager, cfg.MinPoints)
	assert.Equal(t, DelayPercentage, cfg.Delay.Mode)
}

func TestFixedSlot(t *testing.T) {
	slot, ok := StrategyNumber3.FixedSlot()
	assert.True(t, ok)
	assert.Equal(t, 2, slot)

	_, ok = StrategyCrowdWisdom.FixedSlot()
	assert.False(t, ok)
}
