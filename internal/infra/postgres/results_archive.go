package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/game"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultsArchive stores final standings of finished games as JSONB rows.
type ResultsArchive struct {
	pool *pgxpool.Pool
}

func NewResultsArchive(pool *pgxpool.Pool) *ResultsArchive {
	return &ResultsArchive{pool: pool}
}

func (a *ResultsArchive) SaveResults(ctx context.Context, g *domain.Game) error {
	result := game.Results(g)
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO game_results (code, title, ended_at, data) VALUES ($1, $2, $3, $4)`,
		result.Code, result.Title, result.EndedAt, string(data))
	if err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	return nil
}

// LoadResults returns the most recently archived outcome for code.
// Codes are reused once a game is deleted, so older rows may exist.
func (a *ResultsArchive) LoadResults(ctx context.Context, code string) (domain.GameResult, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx,
		`SELECT data FROM game_results WHERE code=$1 ORDER BY ended_at DESC, id DESC LIMIT 1`,
		code).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GameResult{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.GameResult{}, fmt.Errorf("load results: %w", err)
	}
	var result domain.GameResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.GameResult{}, fmt.Errorf("unmarshal results: %w", err)
	}
	return result, nil
}
