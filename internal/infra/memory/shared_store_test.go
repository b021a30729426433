package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestGetMissingKeyReturnsNil(t *testing.T) {
	store := memory.NewSharedStore()
	got, err := store.Get(context.Background(), "games")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %q", got)
	}
}

func TestSubscribeReceivesOwnWrites(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSharedStore()
	if err := store.Set(ctx, "games", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	ch, cancel, err := store.Subscribe(ctx, "games")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if got := receive(t, ch); string(got) != `{"a":1}` {
		t.Fatalf("expected initial value, got %q", got)
	}
	if err := store.Set(ctx, "games", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := receive(t, ch); string(got) != `{"a":2}` {
		t.Fatalf("expected pushed value, got %q", got)
	}
	if err := store.Delete(ctx, "games"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := receive(t, ch); got != nil {
		t.Fatalf("expected nil push after delete, got %q", got)
	}
}

func TestSlowSubscriberKeepsLatestValue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSharedStore()
	ch, cancel, err := store.Subscribe(ctx, "games")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	for i := 0; i < 20; i++ {
		if err := store.Set(ctx, "games", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	var last []byte
	for len(ch) > 0 {
		last = <-ch
	}
	if string(last) != string([]byte{byte('a' + 19)}) {
		t.Fatalf("expected the latest write to survive, got %q", last)
	}
}

func TestCancelClosesFeed(t *testing.T) {
	store := memory.NewSharedStore()
	ch, cancel, err := store.Subscribe(context.Background(), "games")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if store.SubscriberCount("games") != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed feed")
	}
	if store.SubscriberCount("games") != 0 {
		t.Fatalf("expected no subscribers after cancel")
	}
}

func TestUpdateDetectsInterveningWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSharedStore()
	_ = store.Set(ctx, "games", []byte("v1"))

	err := store.Update(ctx, "games", func(current []byte) ([]byte, error) {
		if string(current) != "v1" {
			t.Fatalf("expected v1, got %q", current)
		}
		_ = store.Set(ctx, "games", []byte("other"))
		return []byte("mine"), nil
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := store.Get(ctx, "games")
	if string(got) != "other" {
		t.Fatalf("expected the intervening write to stand, got %q", got)
	}

	err = store.Update(ctx, "games", func(current []byte) ([]byte, error) {
		return append(current, '!'), nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.Get(ctx, "games")
	if string(got) != "other!" {
		t.Fatalf("expected committed update, got %q", got)
	}
}

func TestUpdateAfterDeleteConflicts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSharedStore()
	_ = store.Set(ctx, "games", []byte("v1"))

	err := store.Update(ctx, "games", func([]byte) ([]byte, error) {
		_ = store.Delete(ctx, "games")
		return []byte("v2"), nil
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict after delete, got %v", err)
	}
}

func TestOfflineStoreFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSharedStore()
	_ = store.Set(ctx, "games", []byte("v1"))
	store.SetOffline(true)

	if _, err := store.Get(ctx, "games"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable on get, got %v", err)
	}
	if err := store.Set(ctx, "games", []byte("v2")); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable on set, got %v", err)
	}
	if _, _, err := store.Subscribe(ctx, "games"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable on subscribe, got %v", err)
	}

	store.SetOffline(false)
	got, err := store.Get(ctx, "games")
	if err != nil || string(got) != "v1" {
		t.Fatalf("expected v1 after coming back online, got %q (%v)", got, err)
	}
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("feed closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for push")
	}
	return nil
}
