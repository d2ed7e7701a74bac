// Package resultstore keeps recently displayed result sets in memory so the
// CSV download and page re-renders refer to exactly what the user saw.
// Entries expire; nothing is persisted.
package resultstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/ResumeMatch/internal/match"
)

// DefaultTTL is how long a result set stays downloadable.
const DefaultTTL = 30 * time.Minute

// Store is an expiring in-memory map of result sets keyed by ID.
type Store struct {
	cache *cache.Cache
	now   func() time.Time
}

// New creates a Store whose entries live for ttl.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		cache: cache.New(ttl, ttl*2),
		now:   time.Now,
	}
}

// Put stores a copy of results under a fresh ID and returns the set.
func (s *Store) Put(results []match.MatchResult) *match.ResultSet {
	copied := make([]match.MatchResult, len(results))
	copy(copied, results)

	set := &match.ResultSet{
		ID:        uuid.NewString(),
		Results:   copied,
		CreatedAt: s.now(),
	}
	s.cache.SetDefault(set.ID, set)
	return set
}

// Get returns the set stored under id, if it has not expired.
func (s *Store) Get(id string) (*match.ResultSet, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	set, ok := v.(*match.ResultSet)
	return set, ok
}

// Delete removes a set.
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Len returns the number of unexpired sets.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
