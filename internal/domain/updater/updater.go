// Package updater applies sequential per-match rating updates for one competition-season.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/outcome"
	"github.com/okian/elorank/internal/domain/rating"
	"github.com/okian/elorank/pkg/logger"
	"github.com/okian/elorank/pkg/metrics"
)

// Default updater configuration constants.
const (
	DefaultKFactor = 20.0
	stageName      = "updater"
)

// ErrUnassignedTeam is returned when a match references a team that has no
// rating. The continuity resolver must run before the updater.
var ErrUnassignedTeam = errors.New("team has no assigned rating")

// State is the per-season state of the updater.
type State int

// Updater states.
const (
	AwaitingNextMatch State = iota
	UpdatingRatings
	SeasonComplete
)

func (s State) String() string {
	switch s {
	case AwaitingNextMatch:
		return "awaiting_next_match"
	case UpdatingRatings:
		return "updating_ratings"
	case SeasonComplete:
		return "season_complete"
	default:
		return "unknown"
	}
}

// Change is one rating mutation, in the order it was applied.
type Change struct {
	MatchID string
	Home    string
	Away    string
	Delta   float64 // home gained Delta, away lost exactly Delta
}

// SeasonResult is the immutable outcome of folding one season's matches.
type SeasonResult struct {
	Competition string
	Season      string
	State       State
	Rated       []model.Match // valid matches in processing order, Ratings set
	Writes      []model.MatchRatings
	Changes     []Change
}

// Option applies a configuration option to the Updater.
type Option func(*Updater)

// WithKFactor sets K. Non-positive values are ignored.
func WithKFactor(k float64) Option {
	return func(u *Updater) {
		if k > 0 {
			u.k = k
		}
	}
}

// WithModel sets the outcome model.
func WithModel(m outcome.Model) Option {
	return func(u *Updater) {
		u.model = m
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(u *Updater) {
		if l != nil {
			u.logger = l
		}
	}
}

// Updater computes R' = R + K(S - E) over chronologically ordered matches.
type Updater struct {
	k      float64
	model  outcome.Model
	logger logger.Logger
}

// New creates an Updater with reference constants unless overridden.
func New(opts ...Option) *Updater {
	u := &Updater{
		k:     DefaultKFactor,
		model: outcome.New(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.logger == nil {
		u.logger = logger.Get().Named(stageName)
	}
	return u
}

// Order returns matches sorted by timestamp; ties keep input order.
func Order(matches []model.Match) []model.Match {
	out := append([]model.Match(nil), matches...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Prepare orders matches and splits off the ones that cannot be rated:
// missing essential fields or a repeated match id.
func (u *Updater) Prepare(ctx context.Context, matches []model.Match) (valid []model.Match, skips []model.Skip) {
	seen := make(map[string]struct{}, len(matches))
	for _, m := range Order(matches) {
		if err := m.Validate(); err != nil {
			skips = append(skips, model.Skip{Stage: stageName, MatchID: m.ID, Reason: model.SkipMissingFields, Detail: err.Error()})
			u.logger.Warn(ctx, "skipping match", logger.String("match", m.ID), logger.Error(err))
			continue
		}
		if _, dup := seen[m.ID]; dup {
			skips = append(skips, model.Skip{Stage: stageName, MatchID: m.ID, Reason: model.SkipDuplicateMatch})
			u.logger.Warn(ctx, "skipping duplicate match", logger.String("match", m.ID))
			continue
		}
		seen[m.ID] = struct{}{}
		valid = append(valid, m)
	}
	for _, s := range skips {
		metrics.RecordMatchSkipped(stageName, string(s.Reason))
	}
	return valid, skips
}

// Teams returns the teams of matches in order of first appearance.
func Teams(matches []model.Match) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range matches {
		for _, id := range []string{matches[i].HomeID, matches[i].AwayID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// Run folds valid, already Prepared matches into store. Pre-update ratings
// feed both the expectation and the written record; the store is mutated in
// place, one match at a time, in order.
func (u *Updater) Run(ctx context.Context, store *rating.Store, competition, season string, valid []model.Match, at time.Time) (SeasonResult, error) {
	res := SeasonResult{Competition: competition, Season: season, State: AwaitingNextMatch}
	for i := range valid {
		if err := ctx.Err(); err != nil {
			return SeasonResult{}, fmt.Errorf("season %s %s aborted: %w", competition, season, err)
		}
		res.State = UpdatingRatings
		m := valid[i]
		rh, ok := store.Get(m.HomeID)
		if !ok {
			return SeasonResult{}, fmt.Errorf("match %s home %s: %w", m.ID, m.HomeID, ErrUnassignedTeam)
		}
		ra, ok := store.Get(m.AwayID)
		if !ok {
			return SeasonResult{}, fmt.Errorf("match %s away %s: %w", m.ID, m.AwayID, ErrUnassignedTeam)
		}

		eh, _ := u.model.Expected(rh, ra)
		sh, _ := outcome.Actual(*m.HomeGoals, *m.AwayGoals)
		d := outcome.Delta(u.k, sh, eh)

		r := model.Ratings{
			HomePre:         rh,
			HomePreAdjusted: u.model.Adjusted(rh),
			AwayPre:         ra,
			AwayPreAdjusted: ra,
			BothTeamsScored: *m.HomeGoals > 0 && *m.AwayGoals > 0,
		}
		played := time.Unix(m.Timestamp, 0).UTC()
		store.Set(m.HomeID, rh+d, played)
		store.Set(m.AwayID, ra-d, played)

		m.Ratings = &r
		ratedAt := at
		m.RatedAt = &ratedAt
		res.Rated = append(res.Rated, m)
		res.Writes = append(res.Writes, model.MatchRatings{MatchID: m.ID, Ratings: r})
		res.Changes = append(res.Changes, Change{MatchID: m.ID, Home: m.HomeID, Away: m.AwayID, Delta: d})
		metrics.RecordMatchRated(d)

		u.logger.Debug(ctx, "rated match",
			logger.String("match", m.ID),
			logger.String("home", m.HomeID),
			logger.Float64("home_before", rh),
			logger.Float64("home_after", rh+d),
			logger.String("away", m.AwayID),
			logger.Float64("away_before", ra),
			logger.Float64("away_after", ra-d),
		)
		res.State = AwaitingNextMatch
	}
	res.State = SeasonComplete
	return res, nil
}
