package strategy

import (
	"github.com/alejandrodnm/predibot/internal/domain"
)

// Variantes adaptativas: versiones de un solo tier de la cascada
// CROWD_WISDOM, seleccionadas por las recomendaciones del perfil aprendido
// del streamer en vez de por la config estática.

// followCrowd apuesta siempre al líder del voto. Se recomienda cuando la
// multitud del streamer acierta > 70% de las veces.
type followCrowd struct{}

func (followCrowd) Name() domain.StrategyName { return domain.StrategyFollowCrowd }

func (followCrowd) Pick(outs []domain.OutcomeStats, _ domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}
	lead := domain.LeadingIndex(outs)
	conf := 1.0
	if moneyIndex(outs) == lead {
		conf = 1.2
	}
	return Pick{Index: lead, Confidence: conf, Reason: "follow accurate crowd"}, true
}

// contrarian apuesta contra el líder. Se recomienda cuando la multitud del
// streamer acierta < 45% de las veces: su consenso es señal inversa.
type contrarian struct{}

func (contrarian) Name() domain.StrategyName { return domain.StrategyContrarian }

func (contrarian) Pick(outs []domain.OutcomeStats, _ domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}

	lead := domain.LeadingIndex(outs)

	// Contra el líder, preferimos el lado que favorece el dinero; si el
	// dinero también está con el líder, el segundo por usuarios.
	money := moneyIndex(outs)
	if money != lead {
		return Pick{Index: money, Confidence: 0.8, Reason: "fade inaccurate crowd"}, true
	}

	second := -1
	for i := range outs {
		if i == lead {
			continue
		}
		if second == -1 || outs[i].TotalUsers > outs[second].TotalUsers {
			second = i
		}
	}
	return Pick{Index: second, Confidence: 0.7, Reason: "fade inaccurate crowd"}, true
}

// sharpOnly solo apuesta cuando hay señal sharp; sin señal, sin decisión.
// Es la variante por defecto para streamers con multitud mediocre.
type sharpOnly struct{}

func (sharpOnly) Name() domain.StrategyName { return domain.StrategySharpOnly }

func (sharpOnly) Pick(outs []domain.OutcomeStats, _ domain.BetConfig) (Pick, bool) {
	if len(outs) < 2 {
		return Pick{}, false
	}
	return detectSharp(outs, sharpMaxShare, sharpRatio)
}
