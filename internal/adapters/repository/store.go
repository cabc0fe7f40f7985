// Package repository defines the match, metadata and standings stores the
// engine reads from and writes back to.
package repository

import (
	"context"
	"time"

	"github.com/okian/elorank/internal/domain/model"
)

// MatchStore provides the fixtures of competition-seasons and accepts the
// derived per-match fields.
type MatchStore interface {
	// Matches returns every match of competition in season. Order is not
	// guaranteed; the updater sorts by timestamp.
	Matches(ctx context.Context, competition, season string) ([]model.Match, error)
	// Fixtures returns every match of the given competitions across seasons.
	Fixtures(ctx context.Context, competitions []string) ([]model.Match, error)
	// WriteRatings stores derived fields on existing matches.
	WriteRatings(ctx context.Context, writes []model.MatchRatings, at time.Time) error
}

// MetadataStore resolves competition metadata and team membership.
type MetadataStore interface {
	Competition(ctx context.Context, id string) (model.Competition, bool, error)
	// DomesticCompetition returns the domestic competition of team in season.
	DomesticCompetition(ctx context.Context, teamID, season string) (string, bool, error)
}

// StandingsStore keeps historical season standings. Records are never overwritten.
type StandingsStore interface {
	Standings(ctx context.Context, competition, season string) (model.Standings, bool, error)
	// SaveStandings inserts st unless a record for its key exists, and
	// reports whether it was inserted.
	SaveStandings(ctx context.Context, st model.Standings) (bool, error)
}

// Store is the full storage collaborator of the engine.
type Store interface {
	MatchStore
	MetadataStore
	StandingsStore
	Close() error
}

// Dataset is the full content of a store, used to seed and dump it.
type Dataset struct {
	Matches      []model.Match       `json:"matches"`
	Competitions []model.Competition `json:"competitions"`
	Memberships  []model.TeamSeason  `json:"memberships"`
	Standings    []model.Standings   `json:"standings"`
}
