package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/game"
)

// PlayerSession is one player's context: the joined game and their player id.
type PlayerSession struct {
	session
}

func NewPlayerSession(repo *Repository, machine *game.Machine) *PlayerSession {
	return &PlayerSession{session: session{repo: repo, machine: machine}}
}

// PlayerID returns the id assigned at join, or "" when not joined.
func (p *PlayerSession) PlayerID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playerID
}

// Player returns the local copy of this player's record.
func (p *PlayerSession) Player() (domain.Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.game == nil {
		return domain.Player{}, false
	}
	player, ok := p.game.Players[p.playerID]
	if !ok {
		return domain.Player{}, false
	}
	return *player, true
}

// Lookup fetches a game for the join form without attaching to it.
func (p *PlayerSession) Lookup(ctx context.Context, code string) (*domain.Game, error) {
	return p.repo.Lookup(ctx, strings.TrimSpace(code))
}

// Join adds the player to the game under code and attaches the session to it.
func (p *PlayerSession) Join(ctx context.Context, code, name string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: game code is required", domain.ErrInvalidInput)
	}
	if p.Active() {
		return "", fmt.Errorf("%w: already joined game %s", domain.ErrIllegalTransition, p.Code())
	}

	var playerID string
	g, err := p.repo.Mutate(ctx, code, func(g *domain.Game) error {
		id, err := p.machine.Join(g, name)
		playerID = id
		return err
	})
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.code = g.Code
	p.playerID = playerID
	p.game = g.Clone()
	p.mu.Unlock()
	return playerID, nil
}

// SubmitAnswer records the player's option for the current question.
// elapsedSeconds is trusted as reported by the client.
func (p *PlayerSession) SubmitAnswer(ctx context.Context, option int, elapsedSeconds float64) (domain.AnswerResult, error) {
	playerID := p.PlayerID()
	if playerID == "" {
		return domain.AnswerResult{}, domain.ErrNoSession
	}
	var result domain.AnswerResult
	_, err := p.mutate(ctx, func(g *domain.Game) error {
		res, err := p.machine.SubmitAnswer(g, playerID, option, elapsedSeconds)
		if err != nil {
			return err
		}
		result = res
		if res.Duplicate {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return result, nil
}

// Leave removes the player from the game and detaches the session. The session is
// detached even when the store write fails; that error is still returned.
func (p *PlayerSession) Leave(ctx context.Context) error {
	playerID := p.PlayerID()
	if playerID == "" {
		return domain.ErrNoSession
	}
	_, err := p.mutate(ctx, func(g *domain.Game) error {
		return p.machine.Leave(g, playerID)
	})
	p.reset()
	switch {
	case err == nil,
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrPlayerNotFound),
		errors.Is(err, domain.ErrIllegalTransition):
		return nil
	default:
		return err
	}
}
