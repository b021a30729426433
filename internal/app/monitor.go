package app

import (
	"context"
	"log"

	"live-quiz-service/internal/domain"
)

// Reconciler is the session side of a Monitor.
type Reconciler interface {
	Code() string
	Reconcile(games domain.Games) (Update, bool)
}

// Monitor owns one subscription to the collection feed and feeds every push
// through the session's freshness check. Only accepted changes reach Updates.
type Monitor struct {
	repo    *Repository
	target  Reconciler
	updates chan Update
}

func NewMonitor(repo *Repository, target Reconciler) *Monitor {
	return &Monitor{
		repo:    repo,
		target:  target,
		updates: make(chan Update, 8),
	}
}

// Updates is closed when Run returns.
func (m *Monitor) Updates() <-chan Update {
	return m.updates
}

// Run blocks until ctx is canceled, the feed closes, or the session's game
// disappears (in which case it returns domain.ErrNotFound).
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.updates)

	feed, cancel, err := m.repo.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	code := m.target.Code()
	log.Printf("monitor subscribed to %q for game %s", m.repo.Key(), code)
	defer log.Printf("monitor for game %s stopped", code)

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-feed:
			if !ok {
				return nil
			}
			games, err := DecodeGames(raw)
			if err != nil {
				log.Printf("monitor for game %s: %v", code, err)
				continue
			}
			update, changed := m.target.Reconcile(games)
			if !changed {
				continue
			}
			select {
			case m.updates <- update:
			case <-ctx.Done():
				return nil
			}
			if update.Kind == UpdateGone {
				log.Printf("game %s no longer exists", update.Code)
				return domain.ErrNotFound
			}
		}
	}
}
