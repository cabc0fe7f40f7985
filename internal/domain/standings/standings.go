// Package standings derives end-of-season tables and rating snapshots.
package standings

import (
	"sort"
	"time"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/rating"
)

// DefaultN is the size of the top and bottom snapshots.
const DefaultN = 3

// Aggregate computes 3/1/0 points from a season's rated matches and captures
// top-N and bottom-N post-season ratings from store. Teams with equal points
// keep the order in which they first appeared in matches.
func Aggregate(competition, season string, matches []model.Match, store *rating.Store, n int, at time.Time) model.Standings {
	if n < 1 {
		n = DefaultN
	}
	points := make(map[string]int)
	var order []string
	add := func(team string, p int) {
		if _, ok := points[team]; !ok {
			order = append(order, team)
		}
		points[team] += p
	}
	for i := range matches {
		hp, ap := matches[i].Points()
		add(matches[i].HomeID, hp)
		add(matches[i].AwayID, ap)
	}

	teams := append([]string(nil), order...)
	sort.SliceStable(teams, func(i, j int) bool { return points[teams[i]] > points[teams[j]] })

	st := model.Standings{
		Competition: competition,
		Season:      season,
		Teams:       teams,
		Points:      points,
		Top:         make(map[string]float64),
		Bottom:      make(map[string]float64),
		Final:       make(map[string]float64, len(teams)),
		CreatedAt:   at,
	}
	for _, id := range teams {
		r, _ := store.Get(id)
		st.Final[id] = r
	}
	top := teams
	if len(top) > n {
		top = top[:n]
	}
	for _, id := range top {
		st.Top[id] = st.Final[id]
	}
	bottom := teams
	if len(bottom) > n {
		bottom = bottom[len(bottom)-n:]
	}
	for _, id := range bottom {
		st.Bottom[id] = st.Final[id]
	}
	return st
}
