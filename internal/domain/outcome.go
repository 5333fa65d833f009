package domain

// OutcomeStats son las estadísticas normalizadas de una opción apostable
// dentro de una predicción. Los campos Total* vienen del payload crudo y son
// monotónicos no-decrecientes mientras la predicción está activa; los campos
// derivados se recalculan en cada update y nunca se persisten.
type OutcomeStats struct {
	ID          string // identificador opaco asignado por la plataforma
	Title       string
	TotalUsers  int
	TotalPoints int
	TopPoints   int // la apuesta individual más grande visible en esta opción

	// Derivados — ver RecomputeDerived.
	PercentageUsers float64 // 100 × TotalUsers / Σ TotalUsers
	Odds            float64 // Σ TotalPoints / TotalPoints (0 si TotalPoints = 0)
	OddsPercentage  float64 // 100 / Odds (0 si Odds = 0)
}

// AvgStake devuelve la apuesta media por usuario en esta opción.
// Devuelve 0 si no hay usuarios — nunca divide por cero.
func (o OutcomeStats) AvgStake() float64 {
	if o.TotalUsers == 0 {
		return 0
	}
	return float64(o.TotalPoints) / float64(o.TotalUsers)
}

// RecomputeDerived recalcula PercentageUsers, Odds y OddsPercentage para
// todas las opciones de una predicción. Tolera totales en cero para cualquier
// opción individual: emite 0, nunca NaN ni ±Inf.
//
// Invariante: si Σ TotalUsers > 0, las PercentageUsers suman 100 (±redondeo).
func RecomputeDerived(outcomes []OutcomeStats) {
	var sumUsers, sumPoints int
	for _, o := range outcomes {
		sumUsers += o.TotalUsers
		sumPoints += o.TotalPoints
	}

	for i := range outcomes {
		o := &outcomes[i]

		o.PercentageUsers = 0
		if sumUsers > 0 {
			o.PercentageUsers = 100 * float64(o.TotalUsers) / float64(sumUsers)
		}

		o.Odds = 0
		if o.TotalPoints > 0 {
			o.Odds = float64(sumPoints) / float64(o.TotalPoints)
		}

		o.OddsPercentage = 0
		if o.Odds > 0 {
			o.OddsPercentage = 100 / o.Odds
		}
	}
}

// TotalUsers devuelve la suma de usuarios de todas las opciones.
func TotalUsers(outcomes []OutcomeStats) int {
	var sum int
	for _, o := range outcomes {
		sum += o.TotalUsers
	}
	return sum
}

// TotalPoints devuelve la suma de puntos de todas las opciones.
func TotalPoints(outcomes []OutcomeStats) int {
	var sum int
	for _, o := range outcomes {
		sum += o.TotalPoints
	}
	return sum
}

// LeadingIndex devuelve el índice de la opción con más usuarios.
// En caso de empate gana el índice más bajo. Devuelve -1 si no hay opciones.
func LeadingIndex(outcomes []OutcomeStats) int {
	best := -1
	for i, o := range outcomes {
		if best == -1 || o.TotalUsers > outcomes[best].TotalUsers {
			best = i
		}
	}
	return best
}

// LeadingShare devuelve la cuota de usuarios (0–100) de la opción líder.
func LeadingShare(outcomes []OutcomeStats) float64 {
	idx := LeadingIndex(outcomes)
	if idx < 0 {
		return 0
	}
	return outcomes[idx].PercentageUsers
}

// RestAvgStake devuelve la apuesta media por usuario del resto del campo,
// excluyendo la opción en skip. Pondera por volumen: Σ puntos / Σ usuarios.
// Para predicciones binarias equivale al AvgStake de la otra opción.
func RestAvgStake(outcomes []OutcomeStats, skip int) float64 {
	var users, points int
	for i, o := range outcomes {
		if i == skip {
			continue
		}
		users += o.TotalUsers
		points += o.TotalPoints
	}
	if users == 0 {
		return 0
	}
	return float64(points) / float64(users)
}
