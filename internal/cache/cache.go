// internal/cache/cache.go
package cache

import (
	"sync"
	"time"
)

// Store is an in-process TTL cache keyed by data kind. Staleness is evaluated
// lazily at read time; there are no background timers. Entries are idempotent
// snapshots of upstream truth, so racing writers are resolved last-write-wins
// and concurrent fetches for the same key are not deduplicated.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry

	// now is replaceable so tests can drive staleness with a fake clock.
	now func() time.Time
}

type entry struct {
	value     any
	fetchedAt time.Time
}

// New returns an empty Store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty Store reading time from now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     now,
	}
}

// GetOrFetch returns the cached value for key if it is fresher than ttl,
// otherwise calls fetch and replaces the entry with the result.
//
// A failed fetch surfaces its error even when a stale entry exists; whether
// stale data is acceptable is the caller's policy decision, not the cache's.
// The lock is not held across fetch, so two callers missing at once both hit
// the network and the later completion wins.
func GetOrFetch[T any](s *Store, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && s.now().Sub(e.fetchedAt) < ttl {
		if v, ok := e.value.(T); ok {
			s.mu.Unlock()
			return v, nil
		}
	}
	s.mu.Unlock()

	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}

	s.mu.Lock()
	s.entries[key] = entry{value: v, fetchedAt: s.now()}
	s.mu.Unlock()
	return v, nil
}

// Peek returns the entry for key regardless of freshness. The second result
// is false when the key has never been populated with a value of type T.
func Peek[T any](s *Store, key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := e.value.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return v, true
}

// FetchedAt returns when key was last populated, or false if it never was.
func (s *Store) FetchedAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.fetchedAt, true
}
