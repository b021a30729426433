package memory

import (
	"context"
	"fmt"
	"sync"

	"live-quiz-service/internal/domain"
)

// SharedStore is an in-process implementation of app.ConditionalStore.
// Every Set pushes the new value to all subscribers of the key, the writer included.
type SharedStore struct {
	mu          sync.Mutex
	values      map[string]entry
	subscribers map[string]map[chan []byte]struct{}
	offline     bool
}

type entry struct {
	data    []byte
	version uint64
}

func NewSharedStore() *SharedStore {
	return &SharedStore{
		values:      make(map[string]entry),
		subscribers: make(map[string]map[chan []byte]struct{}),
	}
}

// SetOffline makes every operation fail with domain.ErrStoreUnavailable.
func (s *SharedStore) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

func (s *SharedStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("get", key); err != nil {
		return nil, err
	}
	return clone(s.values[key].data), nil
}

func (s *SharedStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("set", key); err != nil {
		return err
	}
	s.putLocked(key, value)
	return nil
}

// Update reads the key, runs fn outside the lock and commits only if no other
// write happened in between.
func (s *SharedStore) Update(_ context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	s.mu.Lock()
	if err := s.checkLocked("update", key); err != nil {
		s.mu.Unlock()
		return err
	}
	current := s.values[key]
	s.mu.Unlock()

	next, err := fn(clone(current.data))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("update", key); err != nil {
		return err
	}
	if s.values[key].version != current.version {
		return domain.ErrConflict
	}
	s.putLocked(key, next)
	return nil
}

// Delete removes the key and pushes an empty value to subscribers.
func (s *SharedStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("delete", key); err != nil {
		return err
	}
	// keep the version so a pending Update still sees the write
	s.values[key] = entry{version: s.values[key].version + 1}
	s.broadcastLocked(key, nil)
	return nil
}

// Subscribe delivers the current value (if any) and then every later write.
func (s *SharedStore) Subscribe(_ context.Context, key string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 8)

	s.mu.Lock()
	if err := s.checkLocked("subscribe", key); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[chan []byte]struct{})
	}
	s.subscribers[key][ch] = struct{}{}
	if data := s.values[key].data; data != nil {
		ch <- clone(data)
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[key][ch]; ok {
			delete(s.subscribers[key], ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// SubscriberCount reports how many feeds are open for key.
func (s *SharedStore) SubscriberCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers[key])
}

func (s *SharedStore) putLocked(key string, value []byte) {
	version := s.values[key].version + 1
	s.values[key] = entry{data: clone(value), version: version}
	s.broadcastLocked(key, value)
}

func (s *SharedStore) broadcastLocked(key string, value []byte) {
	for ch := range s.subscribers[key] {
		payload := clone(value)
		select {
		case ch <- payload:
		default:
			// every push carries the full value, so the oldest one can be dropped
			select {
			case <-ch:
			default:
			}
			ch <- payload
		}
	}
}

func (s *SharedStore) checkLocked(op, key string) error {
	if s.offline {
		return fmt.Errorf("%w: %s %q: store offline", domain.ErrStoreUnavailable, op, key)
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
