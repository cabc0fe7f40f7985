// Package continuity decides the starting rating of teams entering a competition-season.
package continuity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/rating"
	"github.com/okian/elorank/internal/domain/season"
	"github.com/okian/elorank/pkg/logger"
	"github.com/okian/elorank/pkg/metrics"
)

// Default continuity configuration constants.
const (
	DefaultInitialRating = 1500.0
)

// Policy names how a new team received its rating.
type Policy string

// Assignment policies.
const (
	PolicyCarried    Policy = "carried"
	PolicyBottomMean Policy = "bottom_mean"
	PolicyInitial    Policy = "initial"
)

// StandingsSource returns the standings of a competition-season, if any exist.
type StandingsSource interface {
	Standings(ctx context.Context, competition, seasonLabel string) (model.Standings, bool, error)
}

// Assignment is the rating given to one team that was unknown at season start.
type Assignment struct {
	TeamID string
	Rating float64
	Policy Policy
}

// Resolution is the outcome of resolving one competition-season.
type Resolution struct {
	Assignments []Assignment
	// PriorSeason is empty when the season label could not be parsed.
	PriorSeason string
	// LabelFallback is set when the label could not be parsed and every new
	// team was treated as entering a first tracked season.
	LabelFallback bool
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithInitialRating sets the rating for teams of a first tracked season.
func WithInitialRating(r float64) Option {
	return func(res *Resolver) {
		res.initial = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(res *Resolver) {
		if l != nil {
			res.logger = l
		}
	}
}

// Resolver implements the season continuity policy.
type Resolver struct {
	source  StandingsSource
	initial float64
	logger  logger.Logger
}

// NewResolver creates a Resolver reading prior standings from source.
func NewResolver(source StandingsSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:  source,
		initial: DefaultInitialRating,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("continuity")
	}
	return r
}

// Resolve assigns a rating to every team in teams that the store does not
// know yet. It completes before any match of the season is processed; teams
// are visited in the given order so assignment is deterministic.
func (r *Resolver) Resolve(ctx context.Context, store *rating.Store, competition, seasonLabel string, teams []string, at time.Time) (Resolution, error) {
	var res Resolution
	var newTeams []string
	for _, id := range teams {
		if !store.Has(id) {
			newTeams = append(newTeams, id)
		}
	}
	if len(newTeams) == 0 {
		return res, nil
	}

	var prior *model.Standings
	prev, err := season.Previous(seasonLabel)
	switch {
	case errors.Is(err, season.ErrUnparsedLabel):
		res.LabelFallback = true
		r.logger.Warn(ctx, "season label not parsable; treating as first tracked season",
			logger.String("competition", competition),
			logger.String("season", seasonLabel),
		)
	case err != nil:
		return res, err
	default:
		res.PriorSeason = prev
		st, ok, err := r.source.Standings(ctx, competition, prev)
		if err != nil {
			return res, fmt.Errorf("prior standings %s %s: %w", competition, prev, err)
		}
		if ok {
			prior = &st
		}
	}

	for _, id := range newTeams {
		a := r.assign(id, prior)
		store.Set(id, a.Rating, at)
		res.Assignments = append(res.Assignments, a)
		metrics.RecordNewTeam(string(a.Policy))
		r.logger.Info(ctx, "assigned starting rating",
			logger.String("team", id),
			logger.String("competition", competition),
			logger.String("season", seasonLabel),
			logger.String("policy", string(a.Policy)),
			logger.Float64("rating", a.Rating),
		)
	}
	return res, nil
}

func (r *Resolver) assign(team string, prior *model.Standings) Assignment {
	if prior == nil {
		return Assignment{TeamID: team, Rating: r.initial, Policy: PolicyInitial}
	}
	if prior.Contains(team) {
		if last, ok := prior.Final[team]; ok {
			return Assignment{TeamID: team, Rating: last, Policy: PolicyCarried}
		}
	}
	if mean, ok := prior.MeanBottom(); ok {
		return Assignment{TeamID: team, Rating: mean, Policy: PolicyBottomMean}
	}
	return Assignment{TeamID: team, Rating: r.initial, Policy: PolicyInitial}
}
