// Package profiler sirve los perfiles aprendidos de los streamers: cachea
// lecturas, serializa escrituras y reintenta con backoff las que fallan.
package profiler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/ports"
)

const (
	defaultCacheSize = 256
	retryQueueSize   = 64

	retryBaseDelay  = time.Second
	retryMaxDelay   = 30 * time.Second
	retryMaxAttempt = 5
)

type retryItem struct {
	rec     domain.ResolvedPrediction
	attempt int
}

// Service envuelve el ProfileStore con una caché LRU y una cola de
// reintentos acotada. Las resoluciones nunca se bloquean en el store: si la
// escritura falla se encola y el worker la reintenta con backoff.
type Service struct {
	store ports.ProfileStore
	cache *lru.Cache[string, domain.StreamerProfile]
	log   *slog.Logger

	retries chan retryItem
}

// New crea el servicio. cacheSize ≤ 0 usa el tamaño por defecto.
func New(store ports.ProfileStore, cacheSize int, log *slog.Logger) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, domain.StreamerProfile](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("profiler.New: cache: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   store,
		cache:   cache,
		log:     log,
		retries: make(chan retryItem, retryQueueSize),
	}, nil
}

// ProfileFor devuelve el perfil del streamer. Con el store caído devuelve el
// perfil por defecto: apostar en modo conservador es mejor que no apostar.
func (s *Service) ProfileFor(ctx context.Context, streamerID string) domain.StreamerProfile {
	if p, ok := s.cache.Get(streamerID); ok {
		return p
	}

	p, err := s.store.ProfileFor(ctx, streamerID)
	if err != nil {
		s.log.Warn("profile fetch failed, using default",
			"streamer_id", streamerID,
			"err", err,
		)
		return domain.DefaultProfile(streamerID)
	}

	s.cache.Add(streamerID, p)
	return p
}

// Recommendations devuelve la vista de solo lectura para el surface de
// consulta externa.
func (s *Service) Recommendations(ctx context.Context, streamerID string) domain.Recommendations {
	return s.ProfileFor(ctx, streamerID).Recommendations
}

// RecordResolved incorpora una resolución al perfil. Si el store falla, la
// encola para reintento y devuelve el perfil recalculado en memoria para que
// el caller vea el estado proyectado.
func (s *Service) RecordResolved(ctx context.Context, rec domain.ResolvedPrediction) domain.StreamerProfile {
	p, err := s.store.RecordResolved(ctx, rec)
	if err != nil {
		s.log.Error("profile update failed, queueing retry",
			"streamer_id", rec.StreamerID,
			"event_id", rec.EventID,
			"err", err,
		)
		s.enqueue(retryItem{rec: rec})

		p = s.ProfileFor(ctx, rec.StreamerID)
		p.Apply(rec)
		p.RecomputeRecommendations()
	}

	s.cache.Add(rec.StreamerID, p)
	return p
}

// Run procesa la cola de reintentos hasta que ctx termine.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-s.retries:
			s.retry(ctx, item)
		}
	}
}

func (s *Service) retry(ctx context.Context, item retryItem) {
	delay := retryBaseDelay << item.attempt
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	p, err := s.store.RecordResolved(ctx, item.rec)
	if err == nil {
		s.cache.Add(item.rec.StreamerID, p)
		return
	}

	item.attempt++
	if item.attempt >= retryMaxAttempt {
		s.log.Error("profile update dropped after retries",
			"streamer_id", item.rec.StreamerID,
			"event_id", item.rec.EventID,
			"attempts", item.attempt,
			"err", err,
		)
		return
	}
	s.enqueue(item)
}

// enqueue añade a la cola sin bloquear; con la cola llena la actualización
// se pierde y se deja constancia. La resolución nunca espera al store.
func (s *Service) enqueue(item retryItem) {
	select {
	case s.retries <- item:
	default:
		s.log.Error("retry queue full, dropping profile update",
			"streamer_id", item.rec.StreamerID,
			"event_id", item.rec.EventID,
		)
	}
}
