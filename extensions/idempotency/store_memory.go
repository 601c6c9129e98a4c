package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a Store for single-process deployments.
// Expired entries are cleaned up lazily on Complete.
type InMemoryStore struct {
	mu       sync.Mutex
	results  map[string]interface{}
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemoryStore creates a store that keeps successful results for ttl.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		results:  make(map[string]interface{}),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

// CheckAndMark implements Store.
func (s *InMemoryStore) CheckAndMark(key string) (Status, interface{}, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result, ok := s.getLocked(key); ok {
		return StatusCached, result, nil
	}

	if done, exists := s.inFlight[key]; exists {
		return StatusInFlight, nil, done
	}

	done := make(chan struct{})
	s.inFlight[key] = done
	return StatusNotFound, nil, done
}

// WaitForResult implements Store.
func (s *InMemoryStore) WaitForResult(ctx context.Context, key string, done chan struct{}) (interface{}, error) {
	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		result, _ := s.getLocked(key)
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *InMemoryStore) getLocked(key string) (interface{}, bool) {
	expiry, exists := s.expiry[key]
	if !exists {
		return nil, false
	}
	if !s.now().Before(expiry) {
		delete(s.results, key)
		delete(s.expiry, key)
		return nil, false
	}
	return s.results[key], true
}

// Complete implements Store.
func (s *InMemoryStore) Complete(key string, result interface{}, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = result
	s.expiry[key] = s.now().Add(s.ttl)
	delete(s.inFlight, key)
	close(done)

	s.cleanupExpiredLocked()
}

// Fail implements Store.
func (s *InMemoryStore) Fail(key string, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	close(done)
}

// Len returns the number of cached results, expired or not.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *InMemoryStore) cleanupExpiredLocked() {
	now := s.now()
	for key, expiry := range s.expiry {
		if !now.Before(expiry) {
			delete(s.results, key)
			delete(s.expiry, key)
		}
	}
}

var _ Store = (*InMemoryStore)(nil)
