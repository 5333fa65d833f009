package ports

import (
	"context"

	"github.com/alejandrodnm/predibot/internal/messages"
)

// MessageSource entrega el stream de mensajes de predicción del feed
// pub/sub. El consumo nunca debe bloquearse por trabajo lento aguas abajo.
type MessageSource interface {
	// Messages devuelve el canal de mensajes decodificados. Se cierra
	// cuando el contexto de Start termina.
	Messages() <-chan messages.Message

	// Start conecta y empieza a entregar mensajes hasta que ctx termine.
	Start(ctx context.Context) error

	// Close libera la conexión.
	Close() error
}
