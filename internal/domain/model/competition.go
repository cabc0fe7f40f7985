package model

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// CompetitionType classifies a competition.
type CompetitionType string

// Known competition types.
const (
	Domestic      CompetitionType = "domestic"
	International CompetitionType = "international"
	Cup           CompetitionType = "cup"
)

// Competition is metadata about a competition identity.
type Competition struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Country string          `json:"country"`
	Type    CompetitionType `json:"type"`
	Level   int             `json:"level"` // 1 = top division
}

// TeamSeason records a team's domestic competition for one season.
type TeamSeason struct {
	TeamID      string `json:"team_id"`
	Season      string `json:"season"`
	Competition string `json:"competition"`
}

// Team is a rated team as kept in the rating snapshot.
type Team struct {
	ID        string    `json:"id"`
	Rating    float64   `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Standings is the end-of-season record of one competition-season.
// Never mutated after creation.
type Standings struct {
	Competition string             `json:"competition"`
	Season      string             `json:"season"`
	Teams       []string           `json:"teams"` // ordered by points desc
	Points      map[string]int     `json:"points"`
	Top         map[string]float64 `json:"top"`    // top-N team -> post-season rating
	Bottom      map[string]float64 `json:"bottom"` // bottom-N team -> post-season rating
	Final       map[string]float64 `json:"final"`  // every team -> post-season rating
	CreatedAt   time.Time          `json:"created_at"`
}

// Contains reports whether team finished the season in these standings.
func (s *Standings) Contains(team string) bool {
	for _, id := range s.Teams {
		if id == team {
			return true
		}
	}
	return false
}

// MeanBottom returns the mean of the bottom-N snapshot, summed in team id
// order so that the result is reproducible.
func (s *Standings) MeanBottom() (float64, bool) {
	if len(s.Bottom) == 0 {
		return 0, false
	}
	ids := make([]string, 0, len(s.Bottom))
	for id := range s.Bottom {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var sum float64
	for _, id := range ids {
		sum += s.Bottom[id]
	}
	return sum / float64(len(ids)), true
}

// Bin is one interval of the rating-gap calibration curve.
// Lower is inclusive and Upper exclusive; the tails use ±Inf.
type Bin struct {
	Label         string
	Lower         float64
	Upper         float64
	Sum           int64
	Count         int64
	AverageMargin float64
	LowConfidence bool
}

// Contains reports whether gap falls in [Lower, Upper).
func (b *Bin) Contains(gap float64) bool {
	return gap >= b.Lower && gap < b.Upper
}

// MarshalJSON writes infinite tail bounds as null.
func (b Bin) MarshalJSON() ([]byte, error) {
	bound := func(v float64) *float64 {
		if math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Label         string   `json:"label"`
		Lower         *float64 `json:"lower"`
		Upper         *float64 `json:"upper"`
		Count         int64    `json:"count"`
		AverageMargin float64  `json:"average_margin"`
		LowConfidence bool     `json:"low_confidence"`
	}{b.Label, bound(b.Lower), bound(b.Upper), b.Count, b.AverageMargin, b.LowConfidence})
}

// CompetitionStrength is a solved relative offset for a competition.
type CompetitionStrength struct {
	Competition string    `json:"competition"`
	Offset      float64   `json:"offset"`
	Fixtures    int       `json:"fixtures"`
	ComputedAt  time.Time `json:"computed_at"`
}
