package domain

import "time"

// PredictionStatus es el estado del ciclo de vida de una predicción.
type PredictionStatus string

const (
	StatusActive   PredictionStatus = "ACTIVE"
	StatusLocked   PredictionStatus = "LOCKED"
	StatusResolved PredictionStatus = "RESOLVED"
	StatusRefunded PredictionStatus = "REFUNDED"
	StatusCanceled PredictionStatus = "CANCELED"
)

// ResultType clasifica el desenlace de una apuesta colocada.
type ResultType string

const (
	ResultWin    ResultType = "WIN"
	ResultLose   ResultType = "LOSE"
	ResultRefund ResultType = "REFUND"
)

// Result es el registro del desenlace de una predicción.
type Result struct {
	Type ResultType
	// PointsWon son los puntos devueltos por la plataforma (0 en LOSE).
	PointsWon int
	// PointsGained es el delta neto: PointsWon - apostado (0 en REFUND).
	PointsGained int
}

// EventPrediction es la entidad que vive desde el mensaje de creación hasta la
// resolución. La muta exclusivamente el camino de mensajes del tracker; el
// scheduler de timing solo la lee a través de snapshots.
type EventPrediction struct {
	EventID    string
	StreamerID string
	Title      string
	Category   Category
	CreatedAt  time.Time
	Window     time.Duration // longitud anunciada de la ventana de apuestas
	Status     PredictionStatus

	Outcomes []OutcomeStats
	Config   BetConfig

	Decision     *Decision // nil hasta que el scheduler dispara
	BetPlaced    bool      // submitWager invocado
	BetConfirmed bool      // mensaje prediction-made recibido
	Result       *Result   // nil hasta resolverse
}

// NewEventPrediction construye la entidad desde un mensaje de creación.
// Clasifica el título y recalcula los derivados de las opciones.
func NewEventPrediction(eventID, streamerID, title string, createdAt time.Time, window time.Duration, outcomes []OutcomeStats, cfg BetConfig) *EventPrediction {
	RecomputeDerived(outcomes)
	return &EventPrediction{
		EventID:    eventID,
		StreamerID: streamerID,
		Title:      title,
		Category:   ClassifyTitle(title),
		CreatedAt:  createdAt,
		Window:     window,
		Status:     StatusActive,
		Outcomes:   outcomes,
		Config:     cfg,
	}
}

// UpdateOutcomes ingiere los últimos totales y recalcula los derivados.
// Solo tiene efecto mientras la predicción está activa y sin apuesta colocada.
func (p *EventPrediction) UpdateOutcomes(outcomes []OutcomeStats) {
	if p.Status != StatusActive || p.BetPlaced {
		return
	}
	RecomputeDerived(outcomes)
	p.Outcomes = outcomes
}

// Elapsed devuelve el tiempo transcurrido desde la creación.
func (p *EventPrediction) Elapsed(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// Remaining devuelve el tiempo restante de la ventana anunciada (mínimo 0).
func (p *EventPrediction) Remaining(now time.Time) time.Duration {
	r := p.Window - p.Elapsed(now)
	if r < 0 {
		return 0
	}
	return r
}

// Resolve aplica el mensaje de resultado: fija el delta de puntos y el estado
// final. Idempotente: una segunda llamada con el mismo resultado es un no-op.
func (p *EventPrediction) Resolve(rt ResultType, pointsWon int) {
	if p.Result != nil {
		return
	}

	placed := 0
	if p.BetPlaced && p.Decision != nil {
		placed = p.Decision.Amount
	}

	gained := 0
	switch rt {
	case ResultWin, ResultLose:
		gained = pointsWon - placed
		p.Status = StatusResolved
	case ResultRefund:
		p.Status = StatusRefunded
	}

	p.Result = &Result{Type: rt, PointsWon: pointsWon, PointsGained: gained}
}

// Terminal devuelve true si la predicción ya no admite más transiciones.
func (p *EventPrediction) Terminal() bool {
	switch p.Status {
	case StatusResolved, StatusRefunded, StatusCanceled:
		return true
	}
	return false
}

// ResolvedPrediction es el registro que alimenta al profiler tras resolverse
// una predicción: lo que hizo la multitud, lo que hicimos nosotros y el timing
// real de cierre frente al anunciado.
type ResolvedPrediction struct {
	EventID    string
	StreamerID string
	Category   Category

	CrowdWasRight bool // la opción mayoritaria resultó ganadora
	BetPlaced     bool
	BetWon        bool
	PointsDelta   int // ganancia (o pérdida, negativa) de la apuesta

	AnnouncedWindow time.Duration
	ActualWindow    time.Duration
	ResolvedAt      time.Time
}

// EarlyClose devuelve true si la predicción cerró claramente antes de la
// ventana anunciada (umbral: 90% de la ventana).
func (r ResolvedPrediction) EarlyClose() bool {
	if r.AnnouncedWindow <= 0 {
		return false
	}
	return float64(r.ActualWindow) < 0.90*float64(r.AnnouncedWindow)
}
