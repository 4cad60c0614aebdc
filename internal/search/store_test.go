package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"feedsim/internal/model"
)

func TestAddResultsPrepends(t *testing.T) {
	s := New()
	s.SetQuery("カワウソ")
	s.SetResults([]model.Tweet{{ID: "old"}})
	s.AddResults([]model.Tweet{{ID: "n1"}, {ID: "n2"}})

	var got []string
	for _, r := range s.Results() {
		got = append(got, r.ID)
	}
	assert.Equal(t, []string{"n1", "n2", "old"}, got)
	assert.Equal(t, "カワウソ", s.Query())
}

func TestResultsAreCopies(t *testing.T) {
	s := New()
	s.SetResults([]model.Tweet{{ID: "a"}})
	r := s.Results()
	r[0].ID = "mutated"
	assert.Equal(t, "a", s.Results()[0].ID)
}

func TestClear(t *testing.T) {
	s := New()
	s.SetQuery("q")
	s.SetSearching(true)
	s.AddResults([]model.Tweet{{ID: "a"}})
	assert.True(t, s.IsSearching())

	s.Clear()
	assert.Empty(t, s.Query())
	assert.Empty(t, s.Results())
	assert.False(t, s.IsSearching())
}
