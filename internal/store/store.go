// Package store persists final game results to Postgres.
package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cambio-games/server/internal/game"
)

// Store implements game.ResultStore on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// SaveResult records one finished hand. Scores land as a jsonb column so the
// standings survive schema-free.
func (s *Store) SaveResult(ctx context.Context, gameID string, result game.FinalResult) error {
	scores, err := json.Marshal(result.Scores)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO game_results (game_id, winner, scores, finished_at)
		 VALUES ($1, $2, $3, now())`,
		gameID, result.Winner, scores)
	return err
}

func (s *Store) Close() {
	s.pool.Close()
}
