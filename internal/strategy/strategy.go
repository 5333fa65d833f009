package strategy

import (
	"github.com/alejandrodnm/predibot/internal/domain"
)

// Pick es la elección cruda de una estrategia: índice de la opción, el
// multiplicador de confianza del tier que decidió y la razón.
type Pick struct {
	Index      int
	Confidence float64
	Reason     string
}

// Picker define el contrato para elegir una opción dada la foto actual de la
// predicción. Cada estrategia encapsula una lectura distinta de la multitud.
type Picker interface {
	// Name devuelve el identificador único de la estrategia.
	Name() domain.StrategyName

	// Pick elige una opción. Devuelve false si la estrategia no tiene
	// decisión con los datos actuales (se trata como skip, nunca error).
	Pick(outcomes []domain.OutcomeStats, cfg domain.BetConfig) (Pick, bool)
}

// Registry mantiene las estrategias disponibles indexadas por nombre.
type Registry map[domain.StrategyName]Picker

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// Register añade una estrategia al registry.
func (r Registry) Register(p Picker) {
	r[p.Name()] = p
}

// Get devuelve la estrategia por nombre.
func (r Registry) Get(name domain.StrategyName) (Picker, bool) {
	p, ok := r[name]
	return p, ok
}

// Engine es el motor de decisión: resuelve la estrategia configurada, evalúa
// las puertas de salto y convierte el pick en una cantidad apostable.
type Engine struct {
	registry Registry
}

// NewEngine crea un Engine con el catálogo completo registrado.
func NewEngine() *Engine {
	r := NewRegistry()
	r.Register(mostVoted{})
	r.Register(highOdds{})
	r.Register(percentage{})
	r.Register(smartMoney{})
	r.Register(smart{})
	r.Register(followMajority{})
	r.Register(crowdWisdom{})
	r.Register(contrarian{})
	r.Register(sharpOnly{})
	r.Register(followCrowd{})
	for slot := range 8 {
		r.Register(fixedSlot{slot: slot})
	}
	return &Engine{registry: r}
}

// Decide computa la apuesta para la foto actual:
//
//  1. balance por debajo de MinimumPoints ⇒ sin decisión
//  2. la estrategia configurada elige opción (<2 opciones ⇒ sin decisión)
//  3. puertas de salto de la config (votantes mínimos, mercado dividido,
//     filtro custom) ⇒ sin decisión si alguna salta
//  4. cantidad = balance × porcentaje × confianza del tier × mult externo,
//     acotada a [MinPoints, MaxPoints] y rebajada en modo stealth
//
// mult es el multiplicador de riesgo externo (confianza del perfil ×
// calidad de datos); pasar 1.0 si no aplica.
func (e *Engine) Decide(outcomes []domain.OutcomeStats, cfg domain.BetConfig, balance int, mult float64) (domain.Decision, bool) {
	if len(outcomes) < 2 {
		return domain.Decision{}, false
	}
	if cfg.MinimumPoints > 0 && balance < cfg.MinimumPoints {
		return domain.Decision{}, false
	}
	if mult <= 0 {
		mult = 1.0
	}

	picker := e.resolve(cfg.Strategy)
	pick, ok := picker.Pick(outcomes, cfg)
	if !ok || pick.Index < 0 || pick.Index >= len(outcomes) {
		return domain.Decision{}, false
	}

	if skip, _ := cfg.Skip(outcomes, pick.Index); skip {
		return domain.Decision{}, false
	}

	amount := int(float64(balance) * cfg.Percentage / 100 * pick.Confidence * mult)
	amount = cfg.ClampAmount(amount)
	if cfg.Stealth {
		amount = domain.StealthShave(amount, outcomes[pick.Index].TopPoints)
	}

	return domain.Decision{
		OutcomeIndex: pick.Index,
		OutcomeID:    outcomes[pick.Index].ID,
		Amount:       amount,
		Confidence:   pick.Confidence,
		Reason:       pick.Reason,
	}, true
}

// resolve devuelve el picker para la estrategia dada, con fallback a
// CROWD_WISDOM si el nombre no está registrado.
func (e *Engine) resolve(name domain.StrategyName) Picker {
	if p, ok := e.registry.Get(name); ok {
		return p
	}
	return e.registry[domain.StrategyCrowdWisdom]
}

// argMax devuelve el índice con el valor máximo; empates al índice más bajo.
func argMax(n int, value func(i int) float64) int {
	best := -1
	for i := range n {
		if best == -1 || value(i) > value(best) {
			best = i
		}
	}
	return best
}
