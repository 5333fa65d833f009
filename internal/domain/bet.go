package domain

import (
	"math/rand/v2"
)

// StrategyName identifica una estrategia de apuesta del catálogo.
type StrategyName string

const (
	StrategyMostVoted      StrategyName = "MOST_VOTED"
	StrategyHighOdds       StrategyName = "HIGH_ODDS"
	StrategyPercentage     StrategyName = "PERCENTAGE"
	StrategySmartMoney     StrategyName = "SMART_MONEY"
	StrategySmart          StrategyName = "SMART"
	StrategyFollowMajority StrategyName = "FOLLOW_MAJORITY"
	StrategyCrowdWisdom    StrategyName = "CROWD_WISDOM"
	StrategyContrarian     StrategyName = "CONTRARIAN"
	StrategySharpOnly      StrategyName = "SHARP_ONLY"
	StrategyFollowCrowd    StrategyName = "FOLLOW_CROWD"

	// NUMBER_1..NUMBER_8 apuestan siempre al slot fijo correspondiente.
	StrategyNumber1 StrategyName = "NUMBER_1"
	StrategyNumber2 StrategyName = "NUMBER_2"
	StrategyNumber3 StrategyName = "NUMBER_3"
	StrategyNumber4 StrategyName = "NUMBER_4"
	StrategyNumber5 StrategyName = "NUMBER_5"
	StrategyNumber6 StrategyName = "NUMBER_6"
	StrategyNumber7 StrategyName = "NUMBER_7"
	StrategyNumber8 StrategyName = "NUMBER_8"
)

// FixedSlot devuelve (slot, true) si la estrategia es NUMBER_1..NUMBER_8.
// El slot devuelto es un índice base cero.
func (s StrategyName) FixedSlot() (int, bool) {
	switch s {
	case StrategyNumber1:
		return 0, true
	case StrategyNumber2:
		return 1, true
	case StrategyNumber3:
		return 2, true
	case StrategyNumber4:
		return 3, true
	case StrategyNumber5:
		return 4, true
	case StrategyNumber6:
		return 5, true
	case StrategyNumber7:
		return 6, true
	case StrategyNumber8:
		return 7, true
	}
	return 0, false
}

// ComparisonOp es el operador de una FilterCondition.
type ComparisonOp string

const (
	OpGT  ComparisonOp = "GT"
	OpLT  ComparisonOp = "LT"
	OpGTE ComparisonOp = "GTE"
	OpLTE ComparisonOp = "LTE"
)

// FilterBy selecciona la estadística que compara una FilterCondition.
type FilterBy string

const (
	FilterTotalUsers     FilterBy = "TOTAL_USERS"     // Σ usuarios de la predicción
	FilterTotalPoints    FilterBy = "TOTAL_POINTS"    // Σ puntos de la predicción
	FilterDecisionUsers  FilterBy = "DECISION_USERS"  // usuarios de la opción elegida
	FilterDecisionPoints FilterBy = "DECISION_POINTS" // puntos de la opción elegida
)

// FilterCondition es el filtro opcional de una BetConfig: si la condición se
// cumple NO se salta la apuesta; si no se cumple, se salta.
type FilterCondition struct {
	By        FilterBy     `yaml:"by"`
	Where     ComparisonOp `yaml:"where"`
	Threshold float64      `yaml:"threshold"`
}

// Satisfied evalúa la condición contra el valor dado.
func (f FilterCondition) Satisfied(value float64) bool {
	switch f.Where {
	case OpGT:
		return value > f.Threshold
	case OpLT:
		return value < f.Threshold
	case OpGTE:
		return value >= f.Threshold
	case OpLTE:
		return value <= f.Threshold
	}
	return false
}

// DelayMode controla cómo se interpreta Delay.Value.
type DelayMode string

const (
	DelayFromStart  DelayMode = "FROM_START"  // segundos desde la creación
	DelayFromEnd    DelayMode = "FROM_END"    // segundos antes del cierre
	DelayPercentage DelayMode = "PERCENTAGE"  // fracción de la ventana (0–1)
)

// DelaySpec describe el punto preferido de la ventana para apostar.
// El TimingScheduler lo usa como horizonte de fallback, no como momento fijo.
type DelaySpec struct {
	Mode  DelayMode `yaml:"mode"`
	Value float64   `yaml:"value"`
}

const (
	// DefaultPercentage es el % del balance apostado por defecto.
	DefaultPercentage = 5.0
	// DefaultPercentageGap es el umbral de desempate de la estrategia SMART.
	DefaultPercentageGap = 20.0
	// DefaultMaxPoints es el tope de puntos por apuesta.
	DefaultMaxPoints = 50000
	// MinWager es el mínimo absoluto que acepta la plataforma.
	MinWager = 10

	dividedLow  = 45.0
	dividedHigh = 55.0
)

// BetConfig es la configuración de apuesta de un streamer, inmutable una vez
// aplicados los defaults. Los umbrales empíricos (banda dividida, gaps) son
// configurables a propósito: no hay derivación documentada detrás de ellos.
type BetConfig struct {
	Strategy      StrategyName     `yaml:"strategy"`
	Percentage    float64          `yaml:"percentage"`     // % del balance
	PercentageGap float64          `yaml:"percentage_gap"` // desempate SMART
	MaxPoints     int              `yaml:"max_points"`
	MinPoints     int              `yaml:"min_points"`
	MinimumPoints int              `yaml:"minimum_points"` // no apostar si balance < esto
	Stealth       bool             `yaml:"stealth"`        // rebajar bajo el top stake rival
	Filter        *FilterCondition `yaml:"filter,omitempty"`
	Delay         DelaySpec        `yaml:"delay"`
	MinVoters     int              `yaml:"min_voters"`
	SkipIfDivided bool             `yaml:"skip_if_divided"` // saltar con líder en [45,55]
}

// WithDefaults devuelve una copia con los defaults aplicados a los campos vacíos.
func (c BetConfig) WithDefaults() BetConfig {
	if c.Strategy == "" {
		c.Strategy = StrategyCrowdWisdom
	}
	if c.Percentage <= 0 {
		c.Percentage = DefaultPercentage
	}
	if c.PercentageGap <= 0 {
		c.PercentageGap = DefaultPercentageGap
	}
	if c.MaxPoints <= 0 {
		c.MaxPoints = DefaultMaxPoints
	}
	if c.MinPoints < MinWager {
		c.MinPoints = MinWager
	}
	if c.Delay.Mode == "" {
		c.Delay = DelaySpec{Mode: DelayPercentage, Value: 0.75}
	}
	return c
}

// Skip evalúa las puertas de salto EN ORDEN, con cortocircuito:
//
//  1. Puerta de votantes mínimos: saltar si Σ usuarios < MinVoters.
//  2. Mercado dividido: saltar si la cuota líder cae en [45, 55].
//  3. FilterCondition opcional: condición cumplida ⇒ NO saltar;
//     sin filtro ⇒ nunca saltar por esta puerta.
//
// Devuelve si hay que saltar y el valor comparado por la puerta que decidió.
func (c BetConfig) Skip(outcomes []OutcomeStats, chosen int) (bool, float64) {
	users := float64(TotalUsers(outcomes))

	if c.MinVoters > 0 && users < float64(c.MinVoters) {
		return true, users
	}

	if c.SkipIfDivided {
		share := LeadingShare(outcomes)
		if share >= dividedLow && share <= dividedHigh {
			return true, share
		}
	}

	if c.Filter != nil {
		value := c.filterValue(outcomes, chosen)
		if !c.Filter.Satisfied(value) {
			return true, value
		}
		return false, value
	}

	return false, 0
}

// filterValue extrae la estadística que compara el filtro.
func (c BetConfig) filterValue(outcomes []OutcomeStats, chosen int) float64 {
	switch c.Filter.By {
	case FilterTotalUsers:
		return float64(TotalUsers(outcomes))
	case FilterTotalPoints:
		return float64(TotalPoints(outcomes))
	case FilterDecisionUsers:
		if chosen >= 0 && chosen < len(outcomes) {
			return float64(outcomes[chosen].TotalUsers)
		}
	case FilterDecisionPoints:
		if chosen >= 0 && chosen < len(outcomes) {
			return float64(outcomes[chosen].TotalPoints)
		}
	}
	return 0
}

// ClampAmount limita la cantidad al rango [MinPoints, MaxPoints].
func (c BetConfig) ClampAmount(amount int) int {
	if amount > c.MaxPoints {
		amount = c.MaxPoints
	}
	if amount < c.MinPoints {
		amount = c.MinPoints
	}
	return amount
}

// StealthShave rebaja la cantidad por debajo del top stake visible de la
// opción elegida, restando un margen aleatorio de 1–5 puntos. Así la apuesta
// nunca encabeza la lista de apuestas grandes. Suelo en MinWager.
func StealthShave(amount, topPoints int) int {
	if topPoints <= 0 || amount < topPoints {
		return amount
	}
	shaved := topPoints - (1 + rand.IntN(5))
	if shaved < MinWager {
		shaved = MinWager
	}
	return shaved
}

// Decision es la apuesta computada para una predicción: opción, cantidad y la
// confianza con la que se tomó. Reason documenta el tier o estrategia que decidió.
type Decision struct {
	OutcomeIndex int
	OutcomeID    string
	Amount       int
	Confidence   float64
	Reason       string
}
