package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is a small in-process record cache for assembled views and fetched
// records. It is an explicit, injected service with a keyed invalidation API
// rather than ambient global state: services that read through it also own
// invalidating it after their writes.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
	ttl   time.Duration
}

type item struct {
	value     any
	expiresAt time.Time
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration) *Store {
	return &Store{
		items: make(map[string]item),
		ttl:   ttl,
	}
}

// ChallengeKey keys an assembled challenge view by challenge, viewer and date.
func ChallengeKey(challengeID, userID uuid.UUID, date string) string {
	return fmt.Sprintf("challenge:%s:user:%s:date:%s", challengeID, userID, date)
}

// EntryKey keys a daily entry by participant and date.
func EntryKey(participantID uuid.UUID, date string) string {
	return fmt.Sprintf("entry:%s:date:%s", participantID, date)
}

// StatsKey keys a challenge's stats payload.
func StatsKey(challengeID uuid.UUID) string {
	return fmt.Sprintf("stats:%s", challengeID)
}

func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(it.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, false
	}
	return it.value, true
}

func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.items[key] = item{value: value, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
}

// InvalidateEntry drops every key touching the (challenge, participant)
// pair. Called immediately after any successful entry upsert, before the
// caller sees the result.
func (s *Store) InvalidateEntry(challengeID, participantID uuid.UUID) {
	prefixes := []string{
		fmt.Sprintf("challenge:%s:", challengeID),
		fmt.Sprintf("entry:%s:", participantID),
		fmt.Sprintf("stats:%s", challengeID),
	}
	s.dropPrefixes(prefixes)
}

// InvalidateChallenge drops every key derived from the challenge.
func (s *Store) InvalidateChallenge(challengeID uuid.UUID) {
	s.dropPrefixes([]string{
		fmt.Sprintf("challenge:%s:", challengeID),
		fmt.Sprintf("stats:%s", challengeID),
	})
}

// Clear wipes the whole cache. Called whenever the authenticated identity
// changes so one identity's records never leak into another session.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = make(map[string]item)
	s.mu.Unlock()
}

func (s *Store) dropPrefixes(prefixes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.items {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				delete(s.items, key)
				break
			}
		}
	}
}

// Len reports the live item count, expired entries included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
