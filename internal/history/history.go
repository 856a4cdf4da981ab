// Package history archives finished matches to Postgres. It is strictly
// fire-and-forget from the arena's point of view: archiving failures are
// logged and never surface to players.
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/gamelobby/arena/internal/match"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_history (
	id         TEXT PRIMARY KEY,
	game       TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	players    JSONB NOT NULL,
	moves      JSONB NOT NULL,
	state      JSONB NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Archive writes finished match records to a Postgres pool.
type Archive struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// Connect opens the pool and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string, log *logrus.Entry) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure match_history schema: %w", err)
	}
	return &Archive{pool: pool, log: log}, nil
}

// RecordMatch inserts one finished match. Duplicate ids are overwritten so
// a retried archive is harmless.
func (a *Archive) RecordMatch(ctx context.Context, m *match.Match) {
	playersJSON, err := json.Marshal(m.Players)
	if err != nil {
		a.log.WithError(err).WithField("match", m.ID).Error("encode players for archive")
		return
	}
	movesJSON, err := json.Marshal(m.Moves)
	if err != nil {
		a.log.WithError(err).WithField("match", m.ID).Error("encode moves for archive")
		return
	}
	stateJSON, err := json.Marshal(m.State)
	if err != nil {
		a.log.WithError(err).WithField("match", m.ID).Error("encode state for archive")
		return
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO match_history (id, game, started_at, players, moves, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET moves = EXCLUDED.moves, state = EXCLUDED.state, ended_at = now()`,
		m.ID, m.Game, m.Start, playersJSON, movesJSON, stateJSON)
	if err != nil {
		a.log.WithError(err).WithField("match", m.ID).Error("archive match")
		return
	}
	a.log.WithFields(logrus.Fields{"match": m.ID, "game": m.Game}).Debug("match archived")
}

// Close releases the pool.
func (a *Archive) Close() {
	a.pool.Close()
}
