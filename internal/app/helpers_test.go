package app_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/game"
	"live-quiz-service/internal/infra/memory"
)

type testEnv struct {
	store   *memory.SharedStore
	repo    *app.Repository
	machine *game.Machine
	archive *memory.ResultsArchive
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewSharedStore()
	return &testEnv{
		store:   store,
		repo:    app.NewRepository(store, app.DefaultKey),
		machine: newTestMachine(),
		archive: memory.NewResultsArchive(),
	}
}

func newTestMachine() *game.Machine {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return game.NewMachineWithClock(domain.DefaultSettings(), now, rand.New(rand.NewSource(7)))
}

func (e *testEnv) admin() *app.AdminSession {
	return app.NewAdminSession(e.repo, e.machine, e.archive)
}

func (e *testEnv) player() *app.PlayerSession {
	return app.NewPlayerSession(e.repo, e.machine)
}

// lobby creates a waiting game with n questions whose correct option is 2.
func (e *testEnv) lobby(t *testing.T, n int) *app.AdminSession {
	t.Helper()
	ctx := context.Background()
	admin := e.admin()
	if _, err := admin.CreateGame(ctx, "General knowledge"); err != nil {
		t.Fatalf("create game: %v", err)
	}
	for i := 0; i < n; i++ {
		q := domain.Question{
			Text:               "question",
			Options:            []string{"a", "b", "c", "d"},
			CorrectOptionIndex: 2,
		}
		if _, err := admin.AddQuestion(ctx, q); err != nil {
			t.Fatalf("add question: %v", err)
		}
	}
	return admin
}

func (e *testEnv) join(t *testing.T, code, name string) *app.PlayerSession {
	t.Helper()
	p := e.player()
	if _, err := p.Join(context.Background(), code, name); err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return p
}

func (e *testEnv) stored(t *testing.T, code string) *domain.Game {
	t.Helper()
	g, err := e.repo.Lookup(context.Background(), code)
	if err != nil {
		t.Fatalf("lookup %s: %v", code, err)
	}
	return g
}

func nextUpdate(t *testing.T, ch <-chan app.Update) app.Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatalf("updates closed")
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
	}
	return app.Update{}
}
