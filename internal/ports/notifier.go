package ports

import (
	"context"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/timing"
)

// PredictionSnapshot es la vista de solo lectura de una predicción activa
// que exponemos a dashboards y al notificador de consola.
type PredictionSnapshot struct {
	EventID    string
	StreamerID string
	Title      string
	Category   domain.Category
	Status     domain.PredictionStatus
	Phase      timing.State

	Outcomes  []domain.OutcomeStats
	Decision  *domain.Decision
	Remaining string // formato humano, p. ej. "1m30s"
}

// Notifier presenta la actividad del bot al usuario.
type Notifier interface {
	// NotifyDecision anuncia una apuesta recién colocada.
	NotifyDecision(ctx context.Context, snap PredictionSnapshot) error

	// NotifyResult anuncia el desenlace de una predicción apostada.
	NotifyResult(ctx context.Context, snap PredictionSnapshot, result domain.Result) error

	// Report muestra las predicciones activas y los perfiles consultados.
	// En la implementación de consola, imprime tablas formateadas.
	Report(ctx context.Context, active []PredictionSnapshot, profiles []domain.StreamerProfile) error
}
