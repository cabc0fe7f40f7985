package solver

import (
	"sort"

	"github.com/okian/elorank/internal/domain/model"
)

type seasonKey struct {
	team        string
	competition string
	season      string
}

type appearance struct {
	ts     int64
	rating float64
}

// Adjacent finds a team's rating around a date from its rated domestic matches.
type Adjacent struct {
	index map[seasonKey][]appearance
}

// NewAdjacent indexes the pre-match ratings of rated matches by team,
// competition and season. Matches without ratings are ignored.
func NewAdjacent(rated []model.Match) *Adjacent {
	a := &Adjacent{index: make(map[seasonKey][]appearance)}
	for i := range rated {
		m := &rated[i]
		if m.Ratings == nil {
			continue
		}
		hk := seasonKey{team: m.HomeID, competition: m.Competition, season: m.Season}
		ak := seasonKey{team: m.AwayID, competition: m.Competition, season: m.Season}
		a.index[hk] = append(a.index[hk], appearance{ts: m.Timestamp, rating: m.Ratings.HomePre})
		a.index[ak] = append(a.index[ak], appearance{ts: m.Timestamp, rating: m.Ratings.AwayPre})
	}
	for k := range a.index {
		list := a.index[k]
		sort.SliceStable(list, func(i, j int) bool { return list[i].ts < list[j].ts })
	}
	return a
}

// Rating returns the pre-match rating of team in its next domestic match
// after ts, or failing that its most recent one before ts. Matches at ts
// itself are not adjacent.
func (a *Adjacent) Rating(team, competition, season string, ts int64) (float64, bool) {
	list := a.index[seasonKey{team: team, competition: competition, season: season}]
	if len(list) == 0 {
		return 0, false
	}
	next := sort.Search(len(list), func(i int) bool { return list[i].ts > ts })
	if next < len(list) {
		return list[next].rating, true
	}
	prev := sort.Search(len(list), func(i int) bool { return list[i].ts >= ts }) - 1
	if prev >= 0 {
		return list[prev].rating, true
	}
	return 0, false
}
