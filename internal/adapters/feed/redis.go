// Package feed entrega los mensajes de predicción desde Redis pub/sub al
// tracker, decodificados a la unión etiquetada de messages.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/predibot/internal/messages"
)

// DefaultChannel es el canal pub/sub con los eventos de predicción.
const DefaultChannel = "prediction_events"

const bufferSize = 256

// RedisSource implementa ports.MessageSource sobre un canal Redis pub/sub.
// Los mensajes que no decodifican se descartan con log — un payload roto no
// puede parar el feed.
type RedisSource struct {
	client  *redis.Client
	channel string
	log     *slog.Logger

	out chan messages.Message
}

// NewRedisSource crea la fuente. channel vacío usa el canal por defecto.
func NewRedisSource(client *redis.Client, channel string, log *slog.Logger) *RedisSource {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisSource{
		client:  client,
		channel: channel,
		log:     log,
		out:     make(chan messages.Message, bufferSize),
	}
}

// Messages devuelve el canal de mensajes decodificados.
func (s *RedisSource) Messages() <-chan messages.Message {
	return s.out
}

// Start se suscribe y bombea mensajes hasta que ctx termine. Bloquea; correr
// en su propia goroutine. Cierra el canal de salida al terminar.
func (s *RedisSource) Start(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Confirmar la suscripción antes de consumir: un fallo aquí es de
	// arranque y debe propagarse, no perderse en el log.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("feed.Start: subscribe %q: %w", s.channel, err)
	}

	s.log.Info("feed: subscribed", "channel", s.channel)
	ch := sub.Channel()

	defer close(s.out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			decoded, err := messages.Decode([]byte(msg.Payload))
			if err != nil {
				s.log.Warn("feed: dropping undecodable message", "err", err)
				continue
			}

			select {
			case s.out <- decoded:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Close libera la conexión subyacente.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
