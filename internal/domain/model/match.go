// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInputValidation marks a record that is missing or carries malformed fields.
// Such records are skipped and counted, never fatal.
var ErrInputValidation = errors.New("input validation")

// Match is a single fixture as delivered by the acquisition collaborator.
// Goal counts are pointers so that "not reported yet" differs from zero.
type Match struct {
	ID          string     `json:"id"`
	Competition string     `json:"competition"` // stable competition identifier, e.g. "ENG-1"
	Season      string     `json:"season"`      // season label, e.g. "2023/2024"
	HomeID      string     `json:"home_id"`
	AwayID      string     `json:"away_id"`
	HomeGoals   *int       `json:"home_goals,omitempty"`
	AwayGoals   *int       `json:"away_goals,omitempty"`
	Timestamp   int64      `json:"timestamp"` // unix seconds; ties keep input order
	Ratings     *Ratings   `json:"ratings,omitempty"`
	RatedAt     *time.Time `json:"rated_at,omitempty"`
}

// Ratings are the derived fields written back onto a match.
type Ratings struct {
	HomePre         float64 `json:"home_pre"`
	HomePreAdjusted float64 `json:"home_pre_adjusted"` // home rating plus home advantage
	AwayPre         float64 `json:"away_pre"`
	AwayPreAdjusted float64 `json:"away_pre_adjusted"` // equal to AwayPre; kept for symmetry of the record
	BothTeamsScored bool    `json:"both_teams_scored"`
}

// MatchRatings is one derived-field write for the match store.
type MatchRatings struct {
	MatchID string
	Ratings Ratings
}

// Validate reports the missing essential fields of m wrapped in ErrInputValidation.
func (m *Match) Validate() error {
	var missing []string
	if strings.TrimSpace(m.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(m.HomeID) == "" {
		missing = append(missing, "home_id")
	}
	if strings.TrimSpace(m.AwayID) == "" {
		missing = append(missing, "away_id")
	}
	if m.HomeGoals == nil {
		missing = append(missing, "home_goals")
	}
	if m.AwayGoals == nil {
		missing = append(missing, "away_goals")
	}
	if len(missing) > 0 {
		return fmt.Errorf("match %q missing %s: %w", m.ID, strings.Join(missing, ", "), ErrInputValidation)
	}
	if *m.HomeGoals < 0 || *m.AwayGoals < 0 {
		return fmt.Errorf("match %q has negative goal count: %w", m.ID, ErrInputValidation)
	}
	return nil
}

// Margin returns home goals minus away goals. Callers must Validate first.
func (m *Match) Margin() int {
	return *m.HomeGoals - *m.AwayGoals
}

// Points returns the 3/1/0 points earned by home and away.
func (m *Match) Points() (home, away int) {
	switch {
	case *m.HomeGoals > *m.AwayGoals:
		return 3, 0
	case *m.HomeGoals < *m.AwayGoals:
		return 0, 3
	default:
		return 1, 1
	}
}

// Goals is a convenience constructor for goal pointers.
func Goals(n int) *int { return &n }
