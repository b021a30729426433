package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"live-quiz-service/internal/domain"
)

// DefaultKey is the single store key holding the whole games collection.
const DefaultKey = "games"

// SharedStore abstracts the remote key-value store (in-memory, Redis, etc).
// Get returns nil without error when the key is absent. Subscribe pushes the
// full current value on every change, including the subscriber's own writes;
// the returned cancel func unsubscribes.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Subscribe(ctx context.Context, key string) (<-chan []byte, func(), error)
}

// ConditionalStore can run a read-modify-write that only commits when the key
// was not written in between; otherwise it returns domain.ErrConflict.
type ConditionalStore interface {
	SharedStore
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// SyncMode selects how the repository guards its read-modify-write cycle.
type SyncMode string

const (
	// SyncOverwrite is plain last-writer-wins; concurrent cycles can lose updates.
	SyncOverwrite SyncMode = "overwrite"
	// SyncOptimistic commits through ConditionalStore and re-runs the mutation on conflict.
	SyncOptimistic SyncMode = "optimistic"
)

// errUnchanged lets a mutation signal that nothing needs to be written.
var errUnchanged = errors.New("no change")

// Repository loads and saves the entire games collection as one value.
type Repository struct {
	store       SharedStore
	key         string
	mode        SyncMode
	maxAttempts int
}

// NewRepository returns a last-writer-wins repository.
func NewRepository(store SharedStore, key string) *Repository {
	if key == "" {
		key = DefaultKey
	}
	return &Repository{store: store, key: key, mode: SyncOverwrite, maxAttempts: 1}
}

// NewOptimisticRepository returns a repository whose mutations commit only if the
// collection did not change since it was read, retrying up to maxAttempts times.
func NewOptimisticRepository(store ConditionalStore, key string, maxAttempts int) *Repository {
	r := NewRepository(store, key)
	r.mode = SyncOptimistic
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	r.maxAttempts = maxAttempts
	return r
}

// Key returns the store key of the collection.
func (r *Repository) Key() string {
	return r.key
}

// Mode reports the configured sync mode.
func (r *Repository) Mode() SyncMode {
	return r.mode
}

// LoadAll reads the whole collection. On failure it returns an empty collection
// together with the error, so read-only callers can degrade safely.
func (r *Repository) LoadAll(ctx context.Context) (domain.Games, error) {
	raw, err := r.store.Get(ctx, r.key)
	if err != nil {
		return domain.Games{}, err
	}
	games, err := DecodeGames(raw)
	if err != nil {
		return domain.Games{}, err
	}
	return games, nil
}

// SaveAll overwrites the whole collection.
func (r *Repository) SaveAll(ctx context.Context, games domain.Games) error {
	raw, err := EncodeGames(games)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, r.key, raw)
}

// Update applies fn to a freshly loaded collection and writes the result back.
// In optimistic mode fn may run more than once, so it must only depend on its argument
// and reassign any outputs it captures. Nothing is written when fn returns an error.
func (r *Repository) Update(ctx context.Context, fn func(games domain.Games) error) (domain.Games, error) {
	if r.mode == SyncOptimistic {
		return r.updateOptimistic(ctx, fn)
	}

	games, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(games); err != nil {
		if errors.Is(err, errUnchanged) {
			return games, nil
		}
		return nil, err
	}
	if err := r.SaveAll(ctx, games); err != nil {
		return nil, err
	}
	return games, nil
}

func (r *Repository) updateOptimistic(ctx context.Context, fn func(games domain.Games) error) (domain.Games, error) {
	store := r.store.(ConditionalStore)

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		var result domain.Games
		err := store.Update(ctx, r.key, func(current []byte) ([]byte, error) {
			games, err := DecodeGames(current)
			if err != nil {
				return nil, err
			}
			result = games
			if err := fn(games); err != nil {
				return nil, err
			}
			return EncodeGames(games)
		})
		switch {
		case err == nil, errors.Is(err, errUnchanged):
			return result, nil
		case errors.Is(err, domain.ErrConflict):
			log.Printf("games update conflict on attempt %d/%d", attempt, r.maxAttempts)
			lastErr = err
			continue
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

// Mutate applies fn to the one game stored under code.
func (r *Repository) Mutate(ctx context.Context, code string, fn func(g *domain.Game) error) (*domain.Game, error) {
	var out *domain.Game
	_, err := r.Update(ctx, func(games domain.Games) error {
		out = nil
		g, ok := games[code]
		if !ok || g == nil {
			return domain.ErrNotFound
		}
		out = g
		return fn(g)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup returns the game stored under code.
func (r *Repository) Lookup(ctx context.Context, code string) (*domain.Game, error) {
	games, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	g, ok := games[code]
	if !ok || g == nil {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

// Subscribe opens the push feed of the collection key.
func (r *Repository) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	return r.store.Subscribe(ctx, r.key)
}

// Clear empties the collection. Stores that can delete drop the key entirely,
// which reads back as an empty collection; others get an empty value written.
func (r *Repository) Clear(ctx context.Context) error {
	if d, ok := r.store.(interface {
		Delete(ctx context.Context, key string) error
	}); ok {
		return d.Delete(ctx, r.key)
	}
	return r.SaveAll(ctx, domain.Games{})
}

// DecodeGames parses a stored collection; an absent or null value is an empty collection.
func DecodeGames(raw []byte) (domain.Games, error) {
	games := domain.Games{}
	if len(raw) == 0 {
		return games, nil
	}
	if err := json.Unmarshal(raw, &games); err != nil {
		return domain.Games{}, fmt.Errorf("decode games: %w", err)
	}
	if games == nil {
		games = domain.Games{}
	}
	for code, g := range games {
		if g == nil {
			delete(games, code)
			continue
		}
		if g.Players == nil {
			g.Players = make(map[string]*domain.Player)
		}
		for _, p := range g.Players {
			if p.Answers == nil {
				p.Answers = make(map[int]int)
			}
		}
	}
	return games, nil
}

// EncodeGames serializes the collection as plain nested JSON.
func EncodeGames(games domain.Games) ([]byte, error) {
	if games == nil {
		games = domain.Games{}
	}
	raw, err := json.Marshal(games)
	if err != nil {
		return nil, fmt.Errorf("encode games: %w", err)
	}
	return raw, nil
}
