package ports

import (
	"context"

	"github.com/alejandrodnm/predibot/internal/domain"
)

// ProfileStore persiste los perfiles aprendidos de los streamers.
// Las escrituras deben serializarse: varias predicciones pueden resolverse
// a la vez y ninguna actualización puede perderse.
type ProfileStore interface {
	// ProfileFor devuelve el perfil del streamer, o el perfil por defecto
	// si no existe todavía.
	ProfileFor(ctx context.Context, streamerID string) (domain.StreamerProfile, error)

	// RecordResolved incorpora una resolución al perfil de forma
	// transaccional y devuelve el perfil actualizado.
	RecordResolved(ctx context.Context, rec domain.ResolvedPrediction) (domain.StreamerProfile, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
