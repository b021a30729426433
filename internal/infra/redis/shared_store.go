package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"live-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// SharedStore implements app.ConditionalStore on Redis.
// Values are stored as:   SET {key} {json}
// Changes are pushed as:  PUBLISH quiz:feed:{key} {json}
// Conditional updates use WATCH {key} + MULTI/EXEC.
type SharedStore struct {
	client  *redis.Client
	timeout time.Duration
	sf      singleflight.Group
}

// NewSharedStore wraps client. timeout bounds each get/set; zero disables it.
func NewSharedStore(client *redis.Client, timeout time.Duration) *SharedStore {
	return &SharedStore{client: client, timeout: timeout}
}

func (s *SharedStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.get(ctx, key)
}

// snapshot reads the initial value for a new subscriber. Concurrent subscribers
// share one round trip; the pushes that follow correct any stale snapshot.
// It runs detached from the caller so one canceled subscriber does not fail the others.
func (s *SharedStore) snapshot(ctx context.Context, key string) ([]byte, error) {
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		ctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
		defer cancel()
		return s.get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	data := result.([]byte)
	if data == nil {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (s *SharedStore) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get", key, err)
	}
	return data, nil
}

func (s *SharedStore) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		pipe.Publish(ctx, s.channel(key), value)
		return nil
	})
	if err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Update runs fn between WATCH and EXEC; a concurrent write to key aborts the
// transaction with domain.ErrConflict.
func (s *SharedStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var fnErr error
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			pipe.Publish(ctx, s.channel(key), next)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return fnErr
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrConflict
	default:
		return unavailable("update", key, err)
	}
}

// Delete removes key and pushes an empty value to subscribers.
func (s *SharedStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Publish(ctx, s.channel(key), "")
		return nil
	})
	if err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

// Subscribe confirms the SUBSCRIBE, delivers the current value and then every
// published change until cancel is called or ctx ends.
func (s *SharedStore) Subscribe(ctx context.Context, key string) (<-chan []byte, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, unavailable("subscribe", key, err)
	}

	out := make(chan []byte, 8)
	if current, err := s.snapshot(ctx, key); err != nil {
		log.Printf("initial read of %q failed: %v", key, err)
	} else if current != nil {
		out <- current
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	msgs := pubsub.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				push(out, []byte(msg.Payload))
			case <-done:
				return
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()
	return out, cancel, nil
}

// Ping checks the connection.
func (s *SharedStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

func (s *SharedStore) channel(key string) string {
	return "quiz:feed:" + key
}

func (s *SharedStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// push never blocks: each payload is the full value, so a stale one is dropped.
func push(out chan []byte, payload []byte) {
	if len(payload) == 0 {
		payload = nil
	}
	select {
	case out <- payload:
	default:
		select {
		case <-out:
		default:
		}
		out <- payload
	}
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %v", domain.ErrStoreUnavailable, op, key, err)
}
