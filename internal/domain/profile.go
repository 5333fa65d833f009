package domain

import "time"

const (
	// minCategorySamples es el tamaño de muestra mínimo para confiar en la
	// precisión de una categoría (skip-list, elección de estrategia).
	minCategorySamples = 8

	followCrowdAccuracy = 0.70 // por encima: la multitud acierta, seguirla
	contrarianAccuracy  = 0.45 // por debajo: la multitud falla, ir en contra

	defaultConfidence = 0.80 // multiplicador conservador en modo aprendizaje
)

// CategoryStats son los contadores agregados de una categoría de predicción.
type CategoryStats struct {
	Total      int // predicciones vistas
	Resolved   int // predicciones resueltas (sin refund/cancel)
	CrowdRight int // veces que la opción mayoritaria ganó
}

// Accuracy devuelve la precisión de la multitud en esta categoría (0–1).
func (s CategoryStats) Accuracy() float64 {
	if s.Resolved == 0 {
		return 0
	}
	return float64(s.CrowdRight) / float64(s.Resolved)
}

// Ledger es el libro de apuestas propias del bot con un streamer.
type Ledger struct {
	BetsPlaced int
	BetsWon    int
	PointsWon  int
	PointsLost int
}

// Recommendations son las derivadas recomputadas tras cada resolución.
type Recommendations struct {
	Strategy       StrategyName
	SkipCategories []Category
	Confidence     float64 // multiplicador de riesgo aplicado a la cantidad
	Learning       bool    // muestra insuficiente: perfil por defecto
}

// ClosePattern resume la tendencia de cierre de un streamer: cuántas
// predicciones cerró antes de la ventana anunciada y con qué anticipación.
type ClosePattern struct {
	Samples       int
	EarlyCloses   int
	AvgCloseRatio float64 // ventana real / anunciada, media (1.0 = cierra a tiempo)
}

// EarlyCloser devuelve true si el streamer cierra pronto de forma habitual.
func (c ClosePattern) EarlyCloser() bool {
	return c.Samples >= 3 && float64(c.EarlyCloses) >= 0.5*float64(c.Samples)
}

// StreamerProfile es el perfil aprendido de un broadcaster: precisión de su
// multitud por categoría, libro de apuestas y patrón de cierre. Se crea
// perezosamente en la primera predicción y nunca se borra (append-only).
type StreamerProfile struct {
	StreamerID string
	Categories map[Category]CategoryStats
	Ledger     Ledger
	Close      ClosePattern
	UpdatedAt  time.Time

	Recommendations Recommendations
}

// DefaultProfile devuelve el perfil conservador para streamers sin historial:
// estrategia por defecto, confianza ×0.8, modo aprendizaje.
func DefaultProfile(streamerID string) StreamerProfile {
	p := StreamerProfile{
		StreamerID: streamerID,
		Categories: make(map[Category]CategoryStats),
	}
	p.Recommendations = Recommendations{
		Strategy:   StrategyCrowdWisdom,
		Confidence: defaultConfidence,
		Learning:   true,
	}
	return p
}

// TotalResolved devuelve el total de predicciones resueltas en el perfil.
func (p StreamerProfile) TotalResolved() int {
	var sum int
	for _, s := range p.Categories {
		sum += s.Resolved
	}
	return sum
}

// OverallAccuracy devuelve la precisión de la multitud en todas las categorías.
func (p StreamerProfile) OverallAccuracy() float64 {
	var resolved, right int
	for _, s := range p.Categories {
		resolved += s.Resolved
		right += s.CrowdRight
	}
	if resolved == 0 {
		return 0
	}
	return float64(right) / float64(resolved)
}

// Apply incorpora una predicción resuelta a los agregados del perfil.
// No recalcula recomendaciones — llamar a RecomputeRecommendations después.
func (p *StreamerProfile) Apply(rec ResolvedPrediction) {
	if p.Categories == nil {
		p.Categories = make(map[Category]CategoryStats)
	}

	stats := p.Categories[rec.Category]
	stats.Total++
	stats.Resolved++
	if rec.CrowdWasRight {
		stats.CrowdRight++
	}
	p.Categories[rec.Category] = stats

	if rec.BetPlaced {
		p.Ledger.BetsPlaced++
		if rec.BetWon {
			p.Ledger.BetsWon++
			p.Ledger.PointsWon += rec.PointsDelta
		} else if rec.PointsDelta < 0 {
			p.Ledger.PointsLost += -rec.PointsDelta
		}
	}

	if rec.AnnouncedWindow > 0 && rec.ActualWindow > 0 {
		ratio := float64(rec.ActualWindow) / float64(rec.AnnouncedWindow)
		if ratio > 1 {
			ratio = 1
		}
		n := float64(p.Close.Samples)
		p.Close.AvgCloseRatio = (p.Close.AvgCloseRatio*n + ratio) / (n + 1)
		p.Close.Samples++
		if rec.EarlyClose() {
			p.Close.EarlyCloses++
		}
	}

	p.UpdatedAt = rec.ResolvedAt
}

// RecomputeRecommendations rederiva la estrategia óptima, la skip-list y el
// multiplicador de confianza desde los agregados actuales:
//
//   - precisión global > 70% ⇒ seguir a la multitud (FOLLOW_CROWD)
//   - precisión global < 45% ⇒ contrarian
//   - en medio ⇒ solo señales sharp (SHARP_ONLY)
//   - skip-list: categorías con precisión < 45% y muestra suficiente
//
// Con menos de minCategorySamples resoluciones totales se queda en modo
// aprendizaje con el perfil por defecto.
func (p *StreamerProfile) RecomputeRecommendations() {
	if p.TotalResolved() < minCategorySamples {
		p.Recommendations = Recommendations{
			Strategy:   StrategyCrowdWisdom,
			Confidence: defaultConfidence,
			Learning:   true,
		}
		return
	}

	acc := p.OverallAccuracy()

	var strat StrategyName
	switch {
	case acc > followCrowdAccuracy:
		strat = StrategyFollowCrowd
	case acc < contrarianAccuracy:
		strat = StrategyContrarian
	default:
		strat = StrategySharpOnly
	}

	var skip []Category
	for _, cat := range Categories() {
		s := p.Categories[cat]
		if s.Resolved >= minCategorySamples && s.Accuracy() < contrarianAccuracy {
			skip = append(skip, cat)
		}
	}

	// Confianza proporcional a cuánto se aleja la precisión del azar (50%),
	// acotada a [0.6, 1.3].
	conf := 0.8 + (acc-0.5)*1.0
	if conf < 0.6 {
		conf = 0.6
	}
	if conf > 1.3 {
		conf = 1.3
	}

	p.Recommendations = Recommendations{
		Strategy:       strat,
		SkipCategories: skip,
		Confidence:     conf,
	}
}

// ShouldSkipCategory devuelve true si la categoría está en la skip-list.
func (p StreamerProfile) ShouldSkipCategory(cat Category) bool {
	for _, c := range p.Recommendations.SkipCategories {
		if c == cat {
			return true
		}
	}
	return false
}
