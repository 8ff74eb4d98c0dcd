package collector

import (
	"sync"

	"github.com/barometer-digital/skyscraper/internal/domain"
)

// Store is the shared in-memory output of a collection run: a URI-indexed
// snapshot where the last write wins, plus an append-ordered log of every
// stored post, overwrites included.
type Store struct {
	mu      sync.RWMutex
	byURI   map[string]domain.Post
	ordered []domain.Post
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{byURI: make(map[string]domain.Post)}
}

// Put upserts the post by URI and appends it to the ordered log.
func (s *Store) Put(post domain.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byURI[post.URI] = post
	s.ordered = append(s.ordered, post)
}

// Len returns the number of distinct URIs stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byURI)
}

// LogLen returns the length of the ordered log, duplicates included.
func (s *Store) LogLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// Snapshot returns copies of the URI index and the ordered log.
func (s *Store) Snapshot() (map[string]domain.Post, []domain.Post) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byURI := make(map[string]domain.Post, len(s.byURI))
	for uri, post := range s.byURI {
		byURI[uri] = post
	}
	ordered := make([]domain.Post, len(s.ordered))
	copy(ordered, s.ordered)
	return byURI, ordered
}
