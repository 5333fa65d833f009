package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/predibot/internal/domain"
)

// StreamState es la foto del estado de predicciones de un canal, usada por
// el camino redundante de polling.
type StreamState struct {
	StreamerID string
	Live       bool

	// Active es la predicción abierta ahora mismo, si la hay.
	Active *ActivePrediction
}

// ActivePrediction es una predicción abierta vista por polling directo.
type ActivePrediction struct {
	EventID   string
	Title     string
	CreatedAt time.Time
	Window    time.Duration
	Outcomes  []domain.OutcomeStats
}

// StreamProvider consulta el estado del canal directamente, sin pasar por
// el feed pub/sub.
type StreamProvider interface {
	// StreamState devuelve el estado actual del canal.
	StreamState(ctx context.Context, streamerID string) (StreamState, error)

	// Balance devuelve el saldo de puntos del bot en el canal.
	Balance(ctx context.Context, streamerID string) (int, error)
}
