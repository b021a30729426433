package app_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.lobby(t, 2)
	code := admin.Code()
	ann := env.join(t, code, "Ann")
	if _, err := admin.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ann.SubmitAnswer(ctx, 2, 4); err != nil {
		t.Fatalf("answer: %v", err)
	}

	games, err := env.repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := env.repo.SaveAll(ctx, games); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := env.repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(games, again) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", games[code], again[code])
	}
	p := again[code].Players[ann.PlayerID()]
	if p.Answers[0] != 2 || p.Score != 1800 {
		t.Fatalf("unexpected player after round trip %+v", p)
	}
}

func TestLoadAllEmptyAndNull(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSharedStore()
	repo := app.NewRepository(store, "")
	if repo.Key() != app.DefaultKey {
		t.Fatalf("expected default key, got %q", repo.Key())
	}

	games, err := repo.LoadAll(ctx)
	if err != nil || len(games) != 0 {
		t.Fatalf("expected empty collection, got %v (%v)", games, err)
	}
	_ = store.Set(ctx, app.DefaultKey, []byte("null"))
	games, err = repo.LoadAll(ctx)
	if err != nil || games == nil || len(games) != 0 {
		t.Fatalf("expected empty collection for null, got %v (%v)", games, err)
	}
}

func TestLoadAllDegradesWhenUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.lobby(t, 1)
	env.store.SetOffline(true)

	games, err := env.repo.LoadAll(context.Background())
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if games == nil || len(games) != 0 {
		t.Fatalf("expected empty collection on failure, got %v", games)
	}
}

func TestOverwriteModeLosesConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.lobby(t, 2)
	code := admin.Code()
	ann := env.join(t, code, "Ann")
	if _, err := admin.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	x, _ := env.repo.LoadAll(ctx)
	y, _ := env.repo.LoadAll(ctx)

	x[code].Players[ann.PlayerID()].Score = 100
	if err := env.repo.SaveAll(ctx, x); err != nil {
		t.Fatalf("save x: %v", err)
	}
	y[code].CurrentQuestionIndex = 1
	if err := env.repo.SaveAll(ctx, y); err != nil {
		t.Fatalf("save y: %v", err)
	}

	final := env.stored(t, code)
	if final.CurrentQuestionIndex != 1 {
		t.Fatalf("expected the last write to stand, got index %d", final.CurrentQuestionIndex)
	}
	if final.Players[ann.PlayerID()].Score != 0 {
		t.Fatalf("expected the first write to be lost, got score %d", final.Players[ann.PlayerID()].Score)
	}
}

func TestOptimisticModeKeepsBothUpdates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.lobby(t, 2)
	code := admin.Code()
	ann := env.join(t, code, "Ann")
	if _, err := admin.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	repo := app.NewOptimisticRepository(env.store, app.DefaultKey, 3)
	if repo.Mode() != app.SyncOptimistic {
		t.Fatalf("expected optimistic mode")
	}

	read := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	attempts := 0
	done := make(chan error, 1)
	go func() {
		_, err := repo.Update(ctx, func(games domain.Games) error {
			attempts++
			once.Do(func() {
				close(read)
				<-release
			})
			games[code].Players[ann.PlayerID()].Score = 100
			return nil
		})
		done <- err
	}()

	<-read
	_, err := repo.Update(ctx, func(games domain.Games) error {
		games[code].CurrentQuestionIndex = 1
		return nil
	})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first update: %v", err)
	}

	final := env.stored(t, code)
	if final.CurrentQuestionIndex != 1 || final.Players[ann.PlayerID()].Score != 100 {
		t.Fatalf("expected both updates, got index %d score %d",
			final.CurrentQuestionIndex, final.Players[ann.PlayerID()].Score)
	}
	if attempts != 2 {
		t.Fatalf("expected one retry, got %d attempts", attempts)
	}
}

func TestOptimisticModeGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSharedStore()
	repo := app.NewOptimisticRepository(store, app.DefaultKey, 2)

	attempts := 0
	_, err := repo.Update(ctx, func(games domain.Games) error {
		attempts++
		// a competing writer commits every time
		_ = store.Set(ctx, app.DefaultKey, []byte("{}"))
		return nil
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestMutateMissingGame(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.repo.Mutate(context.Background(), "000000", func(*domain.Game) error {
		t.Fatalf("mutation must not run")
		return nil
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.lobby(t, 0)
	if err := env.repo.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	games, _ := env.repo.LoadAll(ctx)
	if len(games) != 0 {
		t.Fatalf("expected empty collection, got %d games", len(games))
	}
	if raw, _ := env.store.Get(ctx, app.DefaultKey); raw != nil {
		t.Fatalf("expected the key to be deleted, got %q", raw)
	}
}

func TestClearEndsMonitoredSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.lobby(t, 1)
	ann := env.join(t, admin.Code(), "Ann")

	mon := app.NewMonitor(env.repo, ann)
	errCh := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { errCh <- mon.Run(runCtx) }()
	for deadline := time.Now().Add(2 * time.Second); env.store.SubscriberCount(app.DefaultKey) == 0; {
		if time.Now().After(deadline) {
			t.Fatalf("monitor never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := env.repo.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if u := nextUpdate(t, mon.Updates()); u.Kind != app.UpdateGone {
		t.Fatalf("expected gone, got %+v", u)
	}
	if err := <-errCh; !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
