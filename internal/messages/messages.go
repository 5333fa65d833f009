// Package messages define los tipos del feed pub/sub de predicciones.
// El payload dinámico se decodifica una sola vez en la frontera a una
// unión etiquetada; aguas adentro solo circulan tipos concretos.
package messages

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/predibot/internal/domain"
)

// Tipos de mensaje en el campo "type" del sobre.
const (
	TypeEventCreated     = "event-created"
	TypeEventUpdated     = "event-updated"
	TypePredictionMade   = "prediction-made"
	TypePredictionResult = "prediction-result"
)

// Message es la unión etiquetada: exactamente uno de los punteros es no-nil.
type Message struct {
	Type       string
	StreamerID string

	EventCreated     *EventCreated
	EventUpdated     *EventUpdated
	PredictionMade   *PredictionMade
	PredictionResult *PredictionResult
}

// EventCreated anuncia una predicción nueva abierta a apuestas.
type EventCreated struct {
	EventID       string    `json:"eventId"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"createdAt"`
	WindowSeconds int       `json:"windowSeconds"`
	Status        string    `json:"status"`
	Outcomes      []Outcome `json:"outcomes"`
}

// Window devuelve la ventana anunciada como duración.
func (e EventCreated) Window() time.Duration {
	return time.Duration(e.WindowSeconds) * time.Second
}

// EventUpdated trae los últimos totales por opción.
type EventUpdated struct {
	EventID  string    `json:"eventId"`
	Status   string    `json:"status"`
	Outcomes []Outcome `json:"outcomes"`
}

// PredictionMade confirma que nuestra apuesta quedó registrada.
type PredictionMade struct {
	EventID   string `json:"eventId"`
	OutcomeID string `json:"outcomeId"`
	Points    int    `json:"points"`
}

// PredictionResult comunica el desenlace de la predicción.
type PredictionResult struct {
	EventID string `json:"eventId"`
	Result  Result `json:"result"`
}

// Result es el bloque de resultado anidado. OutcomeID es la opción ganadora;
// algunos productores no lo incluyen.
type Result struct {
	Type      string `json:"type"` // WIN | LOSE | REFUND
	PointsWon int    `json:"pointsWon"`
	OutcomeID string `json:"outcomeId,omitempty"`
}

// Outcome es la forma en cable de una opción apostable. El bridge aplana el
// array topPredictors de la plataforma a la apuesta más grande visible.
type Outcome struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	TotalUsers  int    `json:"totalUsers"`
	TotalPoints int    `json:"totalPoints"`
	TopPoints   int    `json:"topPoints,omitempty"`
}

// ToStats convierte las opciones en cable al modelo de dominio y recalcula
// los derivados.
func ToStats(outs []Outcome) []domain.OutcomeStats {
	stats := make([]domain.OutcomeStats, len(outs))
	for i, o := range outs {
		stats[i] = domain.OutcomeStats{
			ID:          o.ID,
			Title:       o.Title,
			TotalUsers:  o.TotalUsers,
			TotalPoints: o.TotalPoints,
			TopPoints:   o.TopPoints,
		}
	}
	domain.RecomputeDerived(stats)
	return stats
}

// envelope es el sobre crudo: tipo, streamer y el resto sin interpretar.
type envelope struct {
	Type       string          `json:"type"`
	StreamerID string          `json:"streamerId"`
	Data       json.RawMessage `json:"data"`
}

// Decode convierte un payload crudo del feed en un Message tipado.
// Tipos desconocidos devuelven error; el caller decide si ignorarlos.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("messages.Decode: invalid envelope: %w", err)
	}

	msg := Message{Type: env.Type, StreamerID: env.StreamerID}

	// Mensajes sin sobre de datos anidado llevan el payload al nivel raíz.
	data := []byte(env.Data)
	if len(data) == 0 {
		data = raw
	}

	switch env.Type {
	case TypeEventCreated:
		var m EventCreated
		if err := json.Unmarshal(data, &m); err != nil {
			return Message{}, fmt.Errorf("messages.Decode: %s: %w", env.Type, err)
		}
		msg.EventCreated = &m
	case TypeEventUpdated:
		var m EventUpdated
		if err := json.Unmarshal(data, &m); err != nil {
			return Message{}, fmt.Errorf("messages.Decode: %s: %w", env.Type, err)
		}
		msg.EventUpdated = &m
	case TypePredictionMade:
		var m PredictionMade
		if err := json.Unmarshal(data, &m); err != nil {
			return Message{}, fmt.Errorf("messages.Decode: %s: %w", env.Type, err)
		}
		msg.PredictionMade = &m
	case TypePredictionResult:
		var m PredictionResult
		if err := json.Unmarshal(data, &m); err != nil {
			return Message{}, fmt.Errorf("messages.Decode: %s: %w", env.Type, err)
		}
		msg.PredictionResult = &m
	default:
		return Message{}, fmt.Errorf("messages.Decode: unknown type %q", env.Type)
	}

	return msg, nil
}
