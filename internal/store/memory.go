package store

import (
	"context"
	"sync"
)

// MemoryStore is a single-process Store. It backs the test suites and small
// deployments that do not replicate; the blocking-pop and pub/sub semantics
// match the Redis implementation within one process.
type MemoryStore struct {
	mu      sync.Mutex
	lists   map[string][]string
	hashes  map[string]map[string]string
	waiters map[string][]chan string
	subs    map[string][]*memorySubscription
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists:   make(map[string][]string),
		hashes:  make(map[string]map[string]string),
		waiters: make(map[string][]chan string),
		subs:    make(map[string][]*memorySubscription),
	}
}

func (s *MemoryStore) BLPop(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	if list := s.lists[key]; len(list) > 0 {
		val := list[0]
		s.lists[key] = list[1:]
		s.mu.Unlock()
		return val, nil
	}
	// Nothing queued: register a waiter. RPush hands a value to exactly one
	// waiter, preserving arrival order.
	ch := make(chan string, 1)
	s.waiters[key] = append(s.waiters[key], ch)
	s.mu.Unlock()

	select {
	case val := <-ch:
		return val, nil
	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.waiters[key] {
			if w == ch {
				s.waiters[key] = append(s.waiters[key][:i], s.waiters[key][i+1:]...)
				break
			}
		}
		// The value may have raced in before cancellation won.
		select {
		case val := <-ch:
			return val, nil
		default:
		}
		return "", ctx.Err()
	}
}

func (s *MemoryStore) LPop(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	if len(list) == 0 {
		return "", ErrNotFound
	}
	s.lists[key] = list[1:]
	return list[0], nil
}

func (s *MemoryStore) RPush(ctx context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, val := range values {
		if ws := s.waiters[key]; len(ws) > 0 {
			ch := ws[0]
			s.waiters[key] = ws[1:]
			ch <- val
			continue
		}
		s.lists[key] = append(s.lists[key], val)
	}
	return nil
}

func (s *MemoryStore) LLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lists[key])), nil
}

func (s *MemoryStore) HGet(ctx context.Context, key, field string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.hashes[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (s *MemoryStore) HSet(ctx context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[key] == nil {
		s.hashes[key] = make(map[string]string)
	}
	s.hashes[key][field] = value
	return nil
}

func (s *MemoryStore) HDel(ctx context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fields {
		delete(s.hashes[key], f)
	}
	return nil
}

func (s *MemoryStore) Publish(ctx context.Context, channel, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs[channel] {
		sub.deliver(payload)
	}
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{
		store:   s,
		channel: channel,
		out:     make(chan string, 64),
	}
	s.mu.Lock()
	s.subs[channel] = append(s.subs[channel], sub)
	s.mu.Unlock()
	return sub, nil
}

func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.lists, key)
		delete(s.hashes, key)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memorySubscription struct {
	store   *MemoryStore
	channel string
	mu      sync.Mutex
	closed  bool
	out     chan string
}

// deliver never blocks: a subscriber that stops draining loses messages,
// the same best-effort contract Redis pub/sub gives.
func (sub *memorySubscription) deliver(payload string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.out <- payload:
	default:
	}
}

func (sub *memorySubscription) Messages() <-chan string { return sub.out }

func (sub *memorySubscription) Close() error {
	sub.store.mu.Lock()
	subs := sub.store.subs[sub.channel]
	for i, other := range subs {
		if other == sub {
			sub.store.subs[sub.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	sub.store.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.out)
	}
	return nil
}
