package cache

import (
	"container/list"
	"sync"
	"time"
)

// Store is an in-memory LRU cache with per-entry TTL and size-based
// eviction. Safe for concurrent use.
type Store[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[string]*list.Element
	order   *list.List
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// NewStore creates a store holding up to maxSize entries, each valid for
// ttl after being set.
func NewStore[T any](maxSize int, ttl time.Duration) *Store[T] {
	return &Store[T]{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached value for key, dropping it when expired.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	el, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	en := el.Value.(*entry[T])
	if time.Now().After(en.expiresAt) {
		s.remove(el)
		return zero, false
	}
	s.order.MoveToFront(el)
	return en.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the store is full.
func (s *Store[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	en := &entry[T]{key: key, value: value, expiresAt: time.Now().Add(s.ttl)}
	if el, ok := s.entries[key]; ok {
		el.Value = en
		s.order.MoveToFront(el)
		return
	}
	s.entries[key] = s.order.PushFront(en)
	if s.order.Len() > s.maxSize {
		if oldest := s.order.Back(); oldest != nil {
			s.remove(oldest)
		}
	}
}

// Delete removes key from the store.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[key]; ok {
		s.remove(el)
	}
}

// Flush empties the store.
func (s *Store[T]) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
}

// CleanExpired removes every expired entry and returns how many were
// dropped.
func (s *Store[T]) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var stale []*list.Element
	for el := s.order.Front(); el != nil; el = el.Next() {
		if now.After(el.Value.(*entry[T]).expiresAt) {
			stale = append(stale, el)
		}
	}
	for _, el := range stale {
		s.remove(el)
	}
	return len(stale)
}

// Size returns the current entry count.
func (s *Store[T]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store[T]) remove(el *list.Element) {
	delete(s.entries, el.Value.(*entry[T]).key)
	s.order.Remove(el)
}
