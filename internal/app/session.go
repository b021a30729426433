package app

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/game"
)

// UpdateKind classifies what the monitor observed.
type UpdateKind string

const (
	// UpdateState carries a strictly newer copy of the session's game.
	UpdateState UpdateKind = "state"
	// UpdateGone means the game disappeared from the collection; the session was reset.
	UpdateGone UpdateKind = "gone"
)

// Update is delivered by the Monitor whenever local state changed.
type Update struct {
	Kind UpdateKind
	Code string
	Game *domain.Game
	View domain.View
}

// session is the explicit per-client context shared by admins and players:
// the code of interest plus the locally held copy of that game.
type session struct {
	repo    *Repository
	machine *game.Machine

	mu       sync.RWMutex
	code     string
	playerID string
	game     *domain.Game
}

// Code returns the attached game code, or "" before create/resume/join.
func (s *session) Code() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// Active reports whether the session is attached to a game.
func (s *session) Active() bool {
	return s.Code() != ""
}

// Game returns a copy of the locally held game.
func (s *session) Game() (*domain.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.game == nil {
		return nil, false
	}
	return s.game.Clone(), true
}

// View projects the locally held game.
func (s *session) View() (domain.View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.game == nil {
		return domain.View{}, false
	}
	return game.Project(s.game), true
}

// Reconcile applies a pushed collection to the local copy. Pushes that are not
// strictly newer than the local copy are discarded.
func (s *session) Reconcile(games domain.Games) (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code == "" {
		return Update{}, false
	}
	pushed, ok := games[s.code]
	if !ok || pushed == nil {
		code := s.code
		s.clearLocked()
		return Update{Kind: UpdateGone, Code: code}, true
	}
	if s.game != nil && pushed.UpdatedAt <= s.game.UpdatedAt {
		return Update{}, false
	}
	s.game = pushed.Clone()
	return Update{Kind: UpdateState, Code: s.code, Game: pushed.Clone(), View: game.Project(s.game)}, true
}

// ForceSync re-reads the collection and replaces the local copy without the
// freshness gate. A failed read leaves local state untouched; a missing game
// ends the session.
func (s *session) ForceSync(ctx context.Context) (domain.View, error) {
	code := s.Code()
	if code == "" {
		return domain.View{}, domain.ErrNoSession
	}
	games, err := s.repo.LoadAll(ctx)
	if err != nil {
		return domain.View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code != code {
		return domain.View{}, domain.ErrNoSession
	}
	g, ok := games[code]
	if !ok || g == nil {
		s.clearLocked()
		return domain.View{}, domain.ErrNotFound
	}
	s.game = g.Clone()
	return game.Project(s.game), nil
}

// mutate runs fn against the stored copy of the session's game. Local state
// only changes after the write succeeded.
func (s *session) mutate(ctx context.Context, fn func(g *domain.Game) error) (*domain.Game, error) {
	code := s.Code()
	if code == "" {
		return nil, domain.ErrNoSession
	}
	g, err := s.repo.Mutate(ctx, code, fn)
	if err != nil {
		return nil, err
	}
	return s.attach(g), nil
}

// attach binds the session to g. For the game already held, g only replaces the
// local copy when it is strictly newer; the monitor may have adopted a later
// push while our write was in flight. It returns a copy of what is now held.
func (s *session) attach(g *domain.Game) *domain.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code != g.Code || s.game == nil || g.UpdatedAt > s.game.UpdatedAt {
		s.code = g.Code
		s.game = g.Clone()
	}
	return s.game.Clone()
}

// Detach leaves the game without touching the store.
func (s *session) Detach() {
	s.reset()
}

func (s *session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *session) clearLocked() {
	s.code = ""
	s.playerID = ""
	s.game = nil
}
