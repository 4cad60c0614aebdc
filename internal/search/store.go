// Package search keeps the transient state of the search screen: the query,
// accumulated results and an in-flight flag. Nothing is persisted.
package search

import (
	"sync"

	"feedsim/internal/model"
)

type Store struct {
	mu        sync.RWMutex
	query     string
	results   []model.Tweet
	searching bool
}

func New() *Store { return &Store{results: []model.Tweet{}} }

func (s *Store) SetQuery(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
}

func (s *Store) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// SetResults replaces the result list.
func (s *Store) SetResults(ts []model.Tweet) {
	s.mu.Lock()
	s.results = append([]model.Tweet{}, ts...)
	s.mu.Unlock()
}

// AddResults puts a new batch in front of the existing results.
func (s *Store) AddResults(ts []model.Tweet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Tweet, 0, len(ts)+len(s.results))
	out = append(out, ts...)
	s.results = append(out, s.results...)
}

func (s *Store) Results() []model.Tweet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Tweet{}, s.results...)
}

func (s *Store) SetSearching(v bool) {
	s.mu.Lock()
	s.searching = v
	s.mu.Unlock()
}

func (s *Store) IsSearching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searching
}

// Clear resets query, results and flag.
func (s *Store) Clear() {
	s.mu.Lock()
	s.query = ""
	s.results = []model.Tweet{}
	s.searching = false
	s.mu.Unlock()
}
