package strategy

import (
	"github.com/alejandrodnm/predibot/internal/domain"
)

// Umbrales de la cascada CROWD_WISDOM. Valores empíricos del juego de
// predicciones: la banda [0.77, 1.3] y [0.83, 1.2] marcan cuándo el dinero
// "diverge" del voto; no hay derivación formal detrás.
const (
	sharpMaxShare   = 40.0 // cuota máxima para ser "minoría sharp"
	sharpRatio      = 1.5  // stake medio ≥ 1.5× el del resto
	sharpRatioSolid = 2.0  // ≥ 2× ⇒ señal fuerte

	strongConsensusShare = 70.0
	weakConsensusShare   = 55.0

	weakDivergeLow   = 0.77
	weakDivergeHigh  = 1.3
	splitDivergeLow  = 0.83
	splitDivergeHigh = 1.2
)

// crowdWisdom es la estrategia principal: una cascada de cuatro tiers que lee
// a la multitud con prioridad a la señal sharp (pocos usuarios, apuestas
// medias desproporcionadas — presumiblemente mejor informados).
//
// Precedencia:
//
//  1. señal sharp: cuota < 40% con stake medio ≥ 1.5× el resto ⇒ apostar a
//     la minoría, confianza 1.2 (1.5 si el ratio llega a 2×)
//  2. consenso fuerte (líder > 70%): apostar al líder; 1.3 si el dinero
//     acompaña, 1.0 si no
//  3. consenso débil (55–70%) con dinero divergente (ratio fuera de
//     [0.77, 1.3]) ⇒ seguir al dinero, confianza 1.1
//  4. mercado dividido (≤ 55%): ratio fuera de [0.83, 1.2] ⇒ seguir al
//     dinero con 0.7; si no, seguir al voto crudo con 0.5
//  5. fallback: MostVoted con 0.8
type crowdWisdom struct{}

func (crowdWisdom) Name() domain.StrategyName { return domain.StrategyCrowdWisdom }

func (crowdWisdom) Pick(outs []domain.OutcomeStats, cfg domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}

	// Tier 1: señal sharp
	if pick, ok := detectSharp(outs, sharpMaxShare, sharpRatio); ok {
		return pick, true
	}

	lead := domain.LeadingIndex(outs)
	leadShare := outs[lead].PercentageUsers
	money := moneyIndex(outs)
	ratio := stakeRatio(outs, lead)

	// Tier 2: consenso fuerte
	if leadShare > strongConsensusShare {
		conf := 1.0
		if money == lead {
			conf = 1.3
		}
		return Pick{Index: lead, Confidence: conf, Reason: "strong consensus"}, true
	}

	// Tier 3: consenso débil con dinero divergente
	if leadShare > weakConsensusShare {
		if ratio > 0 && (ratio < weakDivergeLow || ratio > weakDivergeHigh) {
			return Pick{Index: money, Confidence: 1.1, Reason: "weak consensus, money diverges"}, true
		}
		// dinero y voto alineados sin consenso fuerte: fallback
		return Pick{Index: lead, Confidence: 0.8, Reason: "most voted fallback"}, true
	}

	// Tier 4: mercado dividido
	if ratio > 0 && (ratio < splitDivergeLow || ratio > splitDivergeHigh) {
		return Pick{Index: money, Confidence: 0.7, Reason: "divided market, follow money"}, true
	}
	return Pick{Index: lead, Confidence: 0.5, Reason: "divided market, very uncertain"}, true
}

// detectSharp busca una minoría con stake medio desproporcionado. Devuelve el
// candidato con mejor ratio si alguno supera minRatio.
func detectSharp(outs []domain.OutcomeStats, maxShare, minRatio float64) (Pick, bool) {
	bestIdx := -1
	bestRatio := 0.0

	for i, o := range outs {
		if o.PercentageUsers >= maxShare || o.TotalUsers == 0 {
			continue
		}
		rest := domain.RestAvgStake(outs, i)
		if rest <= 0 {
			continue
		}
		ratio := o.AvgStake() / rest
		if ratio >= minRatio && ratio > bestRatio {
			bestIdx = i
			bestRatio = ratio
		}
	}

	if bestIdx < 0 {
		return Pick{}, false
	}

	conf := 1.2
	reason := "sharp signal"
	if bestRatio >= sharpRatioSolid {
		conf = 1.5
		reason = "strong sharp signal"
	}
	return Pick{Index: bestIdx, Confidence: conf, Reason: reason}, true
}

// moneyIndex devuelve la opción que favorece el dinero (mayor stake medio).
func moneyIndex(outs []domain.OutcomeStats) int {
	return argMax(len(outs), func(i int) float64 { return outs[i].AvgStake() })
}

// stakeRatio devuelve stake medio del líder / stake medio del resto.
// Devuelve 0 si alguno de los lados no tiene datos.
func stakeRatio(outs []domain.OutcomeStats, lead int) float64 {
	rest := domain.RestAvgStake(outs, lead)
	if rest <= 0 {
		return 0
	}
	return outs[lead].AvgStake() / rest
}
