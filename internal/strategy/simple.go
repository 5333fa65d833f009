package strategy

import (
	"fmt"

	"github.com/alejandrodnm/predibot/internal/domain"
)

// Estrategias de un solo criterio: eligen la opción que maximiza una
// estadística. Empates al índice más bajo. Confianza neutra (1.0) — el
// multiplicador de riesgo lo aportan el perfil y la calidad de datos.

type mostVoted struct{}

func (mostVoted) Name() domain.StrategyName { return domain.StrategyMostVoted }

func (mostVoted) Pick(outs []domain.OutcomeStats, _ domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}
	idx := argMax(len(outs), func(i int) float64 { return float64(outs[i].TotalUsers) })
	return Pick{Index: idx, Confidence: 1.0, Reason: "most voted"}, true
}

type highOdds struct{}

func (highOdds) Name() domain.StrategyName { return domain.StrategyHighOdds }

func (highOdds) Pick(outs []domain.OutcomeStats, _ domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}
	idx := argMax(len(outs), func(i int) float64 { return outs[i].Odds })
	return Pick{Index: idx, Confidence: 1.0, Reason: "highest odds"}, true
}

type percentage struct{}

func (percentage) Name() domain.StrategyName { return domain.StrategyPercentage }

func (percentage) Pick(outs []domain.OutcomeStats, _ domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}
	idx := argMax(len(outs), func(i int) float64 { return outs[i].OddsPercentage })
	return Pick{Index: idx, Confidence: 1.0, Reason: "highest odds percentage"}, true
}

type smartMoney struct{}

func (smartMoney) Name() domain.StrategyName { return domain.StrategySmartMoney }

func (smartMoney) Pick(outs []domain.OutcomeStats, _ domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}
	idx := argMax(len(outs), func(i int) float64 { return float64(outs[i].TopPoints) })
	return Pick{Index: idx, Confidence: 1.0, Reason: "largest single stake"}, true
}

// smart desempata entre MostVoted y HighOdds: con cuotas de usuarios muy
// pegadas (gap < PercentageGap) el voto no informa, mejor seguir las odds.
type smart struct{}

func (smart) Name() domain.StrategyName { return domain.StrategySmart }

func (smart) Pick(outs []domain.OutcomeStats, cfg domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}

	lead := domain.LeadingIndex(outs)
	second := -1
	for i := range outs {
		if i == lead {
			continue
		}
		if second == -1 || outs[i].PercentageUsers > outs[second].PercentageUsers {
			second = i
		}
	}

	gap := outs[lead].PercentageUsers - outs[second].PercentageUsers
	if gap < cfg.PercentageGap {
		return highOdds{}.Pick(outs, cfg)
	}
	return mostVoted{}.Pick(outs, cfg)
}

// followMajority apuesta a la opción con cuota > 51%; sin mayoría clara cae
// a MostVoted.
type followMajority struct{}

func (followMajority) Name() domain.StrategyName { return domain.StrategyFollowMajority }

func (followMajority) Pick(outs []domain.OutcomeStats, cfg domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}
	for i, o := range outs {
		if o.PercentageUsers > 51 {
			return Pick{Index: i, Confidence: 1.0, Reason: "majority > 51%"}, true
		}
	}
	return mostVoted{}.Pick(outs, cfg)
}

// fixedSlot apuesta siempre al slot configurado; si no existe, al 0.
type fixedSlot struct {
	slot int
}

func (f fixedSlot) Name() domain.StrategyName {
	return domain.StrategyName(fmt.Sprintf("NUMBER_%d", f.slot+1))
}

func (f fixedSlot) Pick(outs []domain.OutcomeStats, _ domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}
	idx := f.slot
	if idx >= len(outs) {
		idx = 0
	}
	return Pick{Index: idx, Confidence: 1.0, Reason: fmt.Sprintf("fixed slot %d", f.slot+1)}, true
}
