package memory

import (
	"sync"
	"time"

	"github.com/securescript/securescript-api/internal/application"
	"github.com/securescript/securescript-api/internal/domain/quota"
)

// Store is an in-process quota.Store keyed by user identity.
//
// Records live in memory only: counts are lost on restart and are not
// shared between server instances. Swapping this for a shared store is
// a matter of providing another quota.Store implementation.
type Store struct {
	mu      sync.Mutex
	records map[string]*quota.Record

	limit  int
	window time.Duration
	clock  application.Clock
}

func New(limit int, window time.Duration, clock application.Clock) *Store {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	s := &Store{
		records: make(map[string]*quota.Record),
		limit:   limit,
		window:  window,
		clock:   clock,
	}
	go s.cleanup()
	return s
}

// Take checks and consumes one request for the identity.
// The whole lookup-reset-increment sequence runs under the lock so two
// concurrent requests from the same user cannot both slip under the limit.
func (s *Store) Take(identity string) quota.Decision {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identity]
	if !ok || !now.Before(rec.ResetAt) {
		rec = &quota.Record{ResetAt: now.Add(s.window)}
		s.records[identity] = rec
	}

	if rec.Count >= s.limit {
		return quota.Decision{
			Allowed:   false,
			Remaining: 0,
			ResetIn:   rec.ResetAt.Sub(now),
		}
	}

	rec.Count++
	return quota.Decision{
		Allowed:   true,
		Remaining: s.limit - rec.Count,
		ResetIn:   rec.ResetAt.Sub(now),
	}
}

// cleanup drops expired records so the map does not grow unbounded.
func (s *Store) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		now := s.clock.Now()
		s.mu.Lock()
		for identity, rec := range s.records {
			if !now.Before(rec.ResetAt) {
				delete(s.records, identity)
			}
		}
		s.mu.Unlock()
	}
}
