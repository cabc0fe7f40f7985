// Package rating owns the in-memory team -> rating arena used during a run.
package rating

import (
	"errors"
	"sort"
	"time"

	"github.com/okian/elorank/internal/domain/model"
)

// Sentinel kinds for rating store errors.
var (
	ErrNotFound     = errors.New("team not found")
	ErrInvalidLimit = errors.New("invalid rating table limit")
)

// Entry is one row of the ranked rating table.
type Entry struct {
	Rank      int       `json:"rank"`
	TeamID    string    `json:"team_id"`
	Rating    float64   `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

type record struct {
	rating    float64
	updatedAt time.Time
}

// Store maps each team to exactly one current rating.
// It is owned by a single run and passed explicitly; it is not safe for
// concurrent writers.
type Store struct {
	records map[string]record
}

// NewStore creates a Store seeded from a snapshot.
func NewStore(seed []model.Team) *Store {
	s := &Store{records: make(map[string]record, len(seed))}
	for _, t := range seed {
		s.records[t.ID] = record{rating: t.Rating, updatedAt: t.UpdatedAt}
	}
	return s
}

// Get returns the current rating of team.
func (s *Store) Get(team string) (float64, bool) {
	r, ok := s.records[team]
	return r.rating, ok
}

// Has reports whether team has an assigned rating.
func (s *Store) Has(team string) bool {
	_, ok := s.records[team]
	return ok
}

// Set assigns rating to team.
func (s *Store) Set(team string, rating float64, at time.Time) {
	s.records[team] = record{rating: rating, updatedAt: at}
}

// Len returns the number of rated teams.
func (s *Store) Len() int {
	return len(s.records)
}

// Snapshot returns every team ordered by id.
func (s *Store) Snapshot() []model.Team {
	out := make([]model.Team, 0, len(s.records))
	for id, r := range s.records {
		out = append(out, model.Team{ID: id, Rating: r.rating, UpdatedAt: r.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// less returns true if (aRating, aID) ranks before (bRating, bID):
// higher rating first, then team id ascending.
func less(aRating float64, aID string, bRating float64, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

// Table returns the full ranked rating table.
func (s *Store) Table() []Entry {
	out := make([]Entry, 0, len(s.records))
	for id, r := range s.records {
		out = append(out, Entry{TeamID: id, Rating: r.rating, UpdatedAt: r.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		return less(out[i].Rating, out[i].TeamID, out[j].Rating, out[j].TeamID)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// TopN returns the first n rows of the ranked table.
func (s *Store) TopN(n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	table := s.Table()
	if n > len(table) {
		n = len(table)
	}
	return table[:n], nil
}

// Rank returns the table row of team.
func (s *Store) Rank(team string) (Entry, error) {
	r, ok := s.records[team]
	if !ok {
		return Entry{}, ErrNotFound
	}
	rank := 1
	for id, other := range s.records {
		if id != team && less(other.rating, id, r.rating, team) {
			rank++
		}
	}
	return Entry{Rank: rank, TeamID: team, Rating: r.rating, UpdatedAt: r.updatedAt}, nil
}
