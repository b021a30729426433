package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/game"
)

// ResultsArchive keeps finished game results in memory (useful for tests/demos).
type ResultsArchive struct {
	mu      sync.RWMutex
	results map[string]domain.GameResult
}

func NewResultsArchive() *ResultsArchive {
	return &ResultsArchive{results: make(map[string]domain.GameResult)}
}

func (a *ResultsArchive) SaveResults(_ context.Context, g *domain.Game) error {
	result := game.Results(g)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[g.Code] = result
	return nil
}

// LoadResults returns the archived outcome for code.
func (a *ResultsArchive) LoadResults(_ context.Context, code string) (domain.GameResult, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.results[code]
	if !ok {
		return domain.GameResult{}, domain.ErrNotFound
	}
	return r, nil
}
