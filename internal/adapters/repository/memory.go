package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/elorank/internal/domain/model"
)

type seasonKey struct {
	a, b string
}

// Memory is an in-process Store. Matches keep insertion order.
type Memory struct {
	mu           sync.RWMutex
	matches      []model.Match
	byID         map[string]int
	competitions map[string]model.Competition
	memberships  map[seasonKey][]string // team, season -> competitions
	standings    map[seasonKey]model.Standings
	standingKeys []seasonKey
}

var _ Store = (*Memory)(nil)

// NewMemory creates a Memory store seeded with ds. Later matches with a
// repeated id are kept; the first one receives rating writes.
func NewMemory(ds Dataset) *Memory {
	m := &Memory{
		byID:         make(map[string]int, len(ds.Matches)),
		competitions: make(map[string]model.Competition, len(ds.Competitions)),
		memberships:  make(map[seasonKey][]string),
		standings:    make(map[seasonKey]model.Standings),
	}
	m.matches = append(m.matches, ds.Matches...)
	for i := range m.matches {
		if _, ok := m.byID[m.matches[i].ID]; !ok {
			m.byID[m.matches[i].ID] = i
		}
	}
	for _, c := range ds.Competitions {
		m.competitions[c.ID] = c
	}
	for _, ts := range ds.Memberships {
		k := seasonKey{ts.TeamID, ts.Season}
		m.memberships[k] = append(m.memberships[k], ts.Competition)
	}
	for _, st := range ds.Standings {
		m.insertStandings(st)
	}
	return m
}

// Matches implements MatchStore.
func (m *Memory) Matches(_ context.Context, competition, season string) ([]model.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Match
	for i := range m.matches {
		if m.matches[i].Competition == competition && m.matches[i].Season == season {
			out = append(out, m.matches[i])
		}
	}
	return out, nil
}

// Fixtures implements MatchStore.
func (m *Memory) Fixtures(_ context.Context, competitions []string) ([]model.Match, error) {
	want := make(map[string]struct{}, len(competitions))
	for _, c := range competitions {
		want[c] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Match
	for i := range m.matches {
		if _, ok := want[m.matches[i].Competition]; ok {
			out = append(out, m.matches[i])
		}
	}
	return out, nil
}

// WriteRatings implements MatchStore. Either every write applies or none does.
func (m *Memory) WriteRatings(_ context.Context, writes []model.MatchRatings, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range writes {
		if _, ok := m.byID[w.MatchID]; !ok {
			return fmt.Errorf("%w: match %s: %w", ErrPersistence, w.MatchID, ErrNotFound)
		}
	}
	for _, w := range writes {
		r := w.Ratings
		ratedAt := at
		mt := &m.matches[m.byID[w.MatchID]]
		mt.Ratings = &r
		mt.RatedAt = &ratedAt
	}
	return nil
}

// Competition implements MetadataStore.
func (m *Memory) Competition(_ context.Context, id string) (model.Competition, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.competitions[id]
	return c, ok, nil
}

// DomesticCompetition implements MetadataStore. Memberships whose competition
// metadata is unknown are ignored; ties prefer the higher division, then the
// lower competition id.
func (m *Memory) DomesticCompetition(_ context.Context, teamID, season string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best model.Competition
	found := false
	for _, id := range m.memberships[seasonKey{teamID, season}] {
		c, ok := m.competitions[id]
		if !ok || c.Type != model.Domestic {
			continue
		}
		if !found || c.Level < best.Level || (c.Level == best.Level && c.ID < best.ID) {
			best, found = c, true
		}
	}
	return best.ID, found, nil
}

// Standings implements StandingsStore.
func (m *Memory) Standings(_ context.Context, competition, season string) (model.Standings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.standings[seasonKey{competition, season}]
	return st, ok, nil
}

// SaveStandings implements StandingsStore.
func (m *Memory) SaveStandings(_ context.Context, st model.Standings) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertStandings(st), nil
}

func (m *Memory) insertStandings(st model.Standings) bool {
	k := seasonKey{st.Competition, st.Season}
	if _, ok := m.standings[k]; ok {
		return false
	}
	m.standings[k] = st
	m.standingKeys = append(m.standingKeys, k)
	return true
}

// Dataset returns a copy of the store content in a stable order.
func (m *Memory) Dataset() Dataset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds := Dataset{Matches: append([]model.Match(nil), m.matches...)}
	for _, c := range m.competitions {
		ds.Competitions = append(ds.Competitions, c)
	}
	for k, comps := range m.memberships {
		for _, c := range comps {
			ds.Memberships = append(ds.Memberships, model.TeamSeason{TeamID: k.a, Season: k.b, Competition: c})
		}
	}
	for _, k := range m.standingKeys {
		ds.Standings = append(ds.Standings, m.standings[k])
	}
	sort.Slice(ds.Competitions, func(i, j int) bool { return ds.Competitions[i].ID < ds.Competitions[j].ID })
	sort.Slice(ds.Memberships, func(i, j int) bool {
		a, b := ds.Memberships[i], ds.Memberships[j]
		if a.TeamID != b.TeamID {
			return a.TeamID < b.TeamID
		}
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		return a.Competition < b.Competition
	})
	return ds
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
