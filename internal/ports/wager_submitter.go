package ports

import (
	"context"
	"errors"
)

// Errores de sumisión clasificados. Auth y región nunca se reintentan:
// se propagan al caller para intervención manual.
var (
	// ErrAuthInvalid indica token caducado o revocado.
	ErrAuthInvalid = errors.New("ports: auth token invalid")

	// ErrRegionBlocked indica que la plataforma bloquea apuestas en la
	// región de la cuenta.
	ErrRegionBlocked = errors.New("ports: region blocked")

	// ErrInsufficientPoints indica saldo insuficiente para la cantidad.
	ErrInsufficientPoints = errors.New("ports: insufficient points")
)

// WagerSubmitter coloca apuestas en la plataforma.
type WagerSubmitter interface {
	// SubmitWager apuesta amount puntos a la opción outcomeID del evento.
	// token es el identificador de idempotencia de la transacción; la
	// implementación no reintenta por sí misma.
	SubmitWager(ctx context.Context, eventID, outcomeID string, amount int, token string) error
}
