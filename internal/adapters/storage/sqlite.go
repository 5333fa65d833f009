package storage

// sqlite.go — persistencia de los perfiles aprendidos.
//
// Estrategia:
//   - `profile_categories`: una fila por (streamer, categoría) con los
//     contadores agregados. UPSERT incremental en cada resolución.
//   - `profile_ledger`: una fila por streamer con el libro de apuestas.
//   - `close_timings`: una fila por predicción resuelta con ventana
//     anunciada vs real; alimenta el detector de cierres tempranos.
//   - Prune automático al arrancar: close_timings > 60d (los agregados de
//     perfil no se borran nunca — es un store de aprendizaje append-only).

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/predibot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Contadores de precisión de la multitud por streamer y categoría
CREATE TABLE IF NOT EXISTS profile_categories (
    streamer_id  TEXT    NOT NULL,
    category     TEXT    NOT NULL,
    total        INTEGER NOT NULL DEFAULT 0,
    resolved     INTEGER NOT NULL DEFAULT 0,
    crowd_right  INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (streamer_id, category)
);

-- Libro de apuestas propias, una fila por streamer
CREATE TABLE IF NOT EXISTS profile_ledger (
    streamer_id  TEXT PRIMARY KEY,
    bets_placed  INTEGER NOT NULL DEFAULT 0,
    bets_won     INTEGER NOT NULL DEFAULT 0,
    points_won   INTEGER NOT NULL DEFAULT 0,
    points_lost  INTEGER NOT NULL DEFAULT 0,
    updated_at   DATETIME NOT NULL
);

-- Una fila por predicción resuelta: timing real de cierre
CREATE TABLE IF NOT EXISTS close_timings (
    event_id     TEXT PRIMARY KEY,
    streamer_id  TEXT    NOT NULL,
    announced_ms INTEGER NOT NULL,
    actual_ms    INTEGER NOT NULL,
    early_close  INTEGER NOT NULL DEFAULT 0,
    resolved_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_timings_streamer ON close_timings(streamer_id, resolved_at DESC);
`

const retentionTimings = 60 * 24 * time.Hour

// SQLiteStore implementa ports.ProfileStore usando SQLite (pure Go, sin CGo).
// Las escrituras van serializadas: un solo writer, transacción por resolución.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia los timings antiguos.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// ProfileFor carga el perfil del streamer. Sin filas devuelve el perfil por
// defecto en modo aprendizaje.
func (s *SQLiteStore) ProfileFor(ctx context.Context, streamerID string) (domain.StreamerProfile, error) {
	p := domain.DefaultProfile(streamerID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, total, resolved, crowd_right
		FROM profile_categories
		WHERE streamer_id = ?
	`, streamerID)
	if err != nil {
		return p, fmt.Errorf("storage.ProfileFor: query categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		var stats domain.CategoryStats
		if err := rows.Scan(&cat, &stats.Total, &stats.Resolved, &stats.CrowdRight); err != nil {
			return p, fmt.Errorf("storage.ProfileFor: scan category: %w", err)
		}
		p.Categories[domain.Category(cat)] = stats
	}
	if err := rows.Err(); err != nil {
		return p, fmt.Errorf("storage.ProfileFor: categories: %w", err)
	}

	var updatedAt string
	err = s.db.QueryRowContext(ctx, `
		SELECT bets_placed, bets_won, points_won, points_lost, updated_at
		FROM profile_ledger
		WHERE streamer_id = ?
	`, streamerID).Scan(
		&p.Ledger.BetsPlaced, &p.Ledger.BetsWon,
		&p.Ledger.PointsWon, &p.Ledger.PointsLost, &updatedAt,
	)
	if err != nil && err != sql.ErrNoRows {
		return p, fmt.Errorf("storage.ProfileFor: ledger: %w", err)
	}
	if err == nil {
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	}

	pattern, err := s.closePattern(ctx, streamerID)
	if err != nil {
		return p, err
	}
	p.Close = pattern

	p.RecomputeRecommendations()
	return p, nil
}

// RecordResolved incorpora una resolución en una sola transacción y devuelve
// el perfil resultante.
func (s *SQLiteStore) RecordResolved(ctx context.Context, rec domain.ResolvedPrediction) (domain.StreamerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StreamerProfile{}, fmt.Errorf("storage.RecordResolved: begin tx: %w", err)
	}
	defer tx.Rollback()

	crowdRight := 0
	if rec.CrowdWasRight {
		crowdRight = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_categories (streamer_id, category, total, resolved, crowd_right)
		VALUES (?, ?, 1, 1, ?)
		ON CONFLICT(streamer_id, category) DO UPDATE SET
			total       = total + 1,
			resolved    = resolved + 1,
			crowd_right = crowd_right + excluded.crowd_right
	`, rec.StreamerID, string(rec.Category), crowdRight); err != nil {
		return domain.StreamerProfile{}, fmt.Errorf("storage.RecordResolved: upsert category: %w", err)
	}

	placed, won, pointsWon, pointsLost := ledgerDelta(rec)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_ledger (streamer_id, bets_placed, bets_won, points_won, points_lost, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(streamer_id) DO UPDATE SET
			bets_placed = bets_placed + excluded.bets_placed,
			bets_won    = bets_won + excluded.bets_won,
			points_won  = points_won + excluded.points_won,
			points_lost = points_lost + excluded.points_lost,
			updated_at  = excluded.updated_at
	`, rec.StreamerID, placed, won, pointsWon, pointsLost,
		rec.ResolvedAt.UTC().Format(time.RFC3339)); err != nil {
		return domain.StreamerProfile{}, fmt.Errorf("storage.RecordResolved: upsert ledger: %w", err)
	}

	if rec.AnnouncedWindow > 0 && rec.ActualWindow > 0 {
		early := 0
		if rec.EarlyClose() {
			early = 1
		}
		// OR IGNORE: una entrega duplicada del resultado no duplica el timing
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO close_timings
				(event_id, streamer_id, announced_ms, actual_ms, early_close, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.EventID, rec.StreamerID,
			rec.AnnouncedWindow.Milliseconds(), rec.ActualWindow.Milliseconds(),
			early, rec.ResolvedAt.UTC().Format(time.RFC3339)); err != nil {
			return domain.StreamerProfile{}, fmt.Errorf("storage.RecordResolved: insert timing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StreamerProfile{}, fmt.Errorf("storage.RecordResolved: commit: %w", err)
	}

	return s.ProfileFor(ctx, rec.StreamerID)
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// closePattern agrega el patrón de cierre desde close_timings.
func (s *SQLiteStore) closePattern(ctx context.Context, streamerID string) (domain.ClosePattern, error) {
	var c domain.ClosePattern
	var avgRatio sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(early_close), 0),
		       AVG(MIN(1.0, CAST(actual_ms AS REAL) / announced_ms))
		FROM close_timings
		WHERE streamer_id = ?
	`, streamerID).Scan(&c.Samples, &c.EarlyCloses, &avgRatio)
	if err != nil {
		return c, fmt.Errorf("storage.closePattern: %w", err)
	}
	if avgRatio.Valid {
		c.AvgCloseRatio = avgRatio.Float64
	}
	return c, nil
}

// ledgerDelta traduce una resolución a los incrementos del libro.
func ledgerDelta(rec domain.ResolvedPrediction) (placed, won, pointsWon, pointsLost int) {
	if !rec.BetPlaced {
		return 0, 0, 0, 0
	}
	placed = 1
	if rec.BetWon {
		won = 1
		pointsWon = rec.PointsDelta
	} else if rec.PointsDelta < 0 {
		pointsLost = -rec.PointsDelta
	}
	return placed, won, pointsWon, pointsLost
}

// pruneOld elimina timings antiguos para mantener la DB ligera.
func (s *SQLiteStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionTimings)
	s.db.ExecContext(ctx, `DELETE FROM close_timings WHERE resolved_at < ?`, cutoff.Format(time.RFC3339))
}
