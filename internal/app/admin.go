package app

import (
	"context"
	"log"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/game"
)

// ResultsArchive stores final standings of finished games.
type ResultsArchive interface {
	SaveResults(ctx context.Context, g *domain.Game) error
	LoadResults(ctx context.Context, code string) (domain.GameResult, error)
}

// AdminSession is one admin's context: the game they created or resumed.
type AdminSession struct {
	session
	archive ResultsArchive
}

// NewAdminSession builds a detached admin session. archive may be nil.
func NewAdminSession(repo *Repository, machine *game.Machine, archive ResultsArchive) *AdminSession {
	return &AdminSession{session: session{repo: repo, machine: machine}, archive: archive}
}

// CreateGame stores a new waiting game and attaches the session to it.
func (a *AdminSession) CreateGame(ctx context.Context, title string) (*domain.Game, error) {
	var created *domain.Game
	_, err := a.repo.Update(ctx, func(games domain.Games) error {
		created = a.machine.CreateGame(games, title)
		games[created.Code] = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("game %s created", created.Code)
	return a.attach(created), nil
}

// Resume attaches the session to an existing game.
func (a *AdminSession) Resume(ctx context.Context, code string) (*domain.Game, error) {
	g, err := a.repo.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return a.attach(g), nil
}

// ResumeLatest attaches the session to the most recently updated game.
func (a *AdminSession) ResumeLatest(ctx context.Context) (*domain.Game, error) {
	games, err := a.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	var latest *domain.Game
	for _, g := range games {
		if latest == nil || g.UpdatedAt > latest.UpdatedAt ||
			(g.UpdatedAt == latest.UpdatedAt && g.Code < latest.Code) {
			latest = g
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return a.attach(latest), nil
}

// Rename changes the title of a waiting game.
func (a *AdminSession) Rename(ctx context.Context, title string) (*domain.Game, error) {
	return a.mutate(ctx, func(g *domain.Game) error {
		return a.machine.Rename(g, title)
	})
}

// AddQuestion appends a question to a waiting game.
func (a *AdminSession) AddQuestion(ctx context.Context, q domain.Question) (*domain.Game, error) {
	return a.mutate(ctx, func(g *domain.Game) error {
		return a.machine.AddQuestion(g, q)
	})
}

// RemoveQuestion deletes a question of a waiting game by index.
func (a *AdminSession) RemoveQuestion(ctx context.Context, index int) (*domain.Game, error) {
	return a.mutate(ctx, func(g *domain.Game) error {
		return a.machine.RemoveQuestion(g, index)
	})
}

// Start begins the game.
func (a *AdminSession) Start(ctx context.Context) (*domain.Game, error) {
	return a.mutate(ctx, func(g *domain.Game) error {
		return a.machine.Start(g)
	})
}

// Next advances to the next question, finishing the game after the last one.
func (a *AdminSession) Next(ctx context.Context) (*domain.Game, error) {
	var finished bool
	g, err := a.mutate(ctx, func(g *domain.Game) error {
		var err error
		finished, err = a.machine.Next(g)
		return err
	})
	if err != nil {
		return nil, err
	}
	if finished {
		a.archiveResults(ctx, g)
	}
	return g, nil
}

// End finishes the game and computes final rankings.
func (a *AdminSession) End(ctx context.Context) (*domain.Game, error) {
	g, err := a.mutate(ctx, func(g *domain.Game) error {
		return a.machine.End(g)
	})
	if err != nil {
		return nil, err
	}
	a.archiveResults(ctx, g)
	return g, nil
}

// Delete removes the game from the collection and detaches the session.
func (a *AdminSession) Delete(ctx context.Context) error {
	code := a.Code()
	if code == "" {
		return domain.ErrNoSession
	}
	_, err := a.repo.Update(ctx, func(games domain.Games) error {
		if _, ok := games[code]; !ok {
			return domain.ErrNotFound
		}
		delete(games, code)
		return nil
	})
	if err != nil {
		return err
	}
	a.reset()
	log.Printf("game %s deleted", code)
	return nil
}

// ArchivedResults returns the archived outcome of a finished game.
func (a *AdminSession) ArchivedResults(ctx context.Context, code string) (domain.GameResult, error) {
	if a.archive == nil {
		return domain.GameResult{}, domain.ErrNotFound
	}
	return a.archive.LoadResults(ctx, code)
}

func (a *AdminSession) archiveResults(ctx context.Context, g *domain.Game) {
	if a.archive == nil {
		return
	}
	if err := a.archive.SaveResults(ctx, g); err != nil {
		log.Printf("archive results for game %s: %v", g.Code, err)
	}
}
