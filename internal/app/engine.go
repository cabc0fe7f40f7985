// Package app runs the rating engine end to end: the season loop, the
// calibration and solver stages, and all-or-nothing persistence.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/elorank/internal/adapters/export"
	"github.com/okian/elorank/internal/adapters/http/api"
	"github.com/okian/elorank/internal/adapters/repository"
	"github.com/okian/elorank/internal/adapters/snapshot"
	"github.com/okian/elorank/internal/domain/calibration"
	"github.com/okian/elorank/internal/domain/continuity"
	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/rating"
	"github.com/okian/elorank/internal/domain/season"
	"github.com/okian/elorank/internal/domain/solver"
	"github.com/okian/elorank/internal/domain/standings"
	"github.com/okian/elorank/internal/domain/updater"
	"github.com/okian/elorank/pkg/logger"
	"github.com/okian/elorank/pkg/metrics"
)

// ErrNoCompetitions is returned when the engine has nothing to rate.
var ErrNoCompetitions = errors.New("no competitions or seasons configured")

// Report stage names owned by the engine.
const (
	stageUpdater    = "updater"
	stageContinuity = "continuity"
	stageStandings  = "standings"
	stageCalib      = "calibration"
	stageSolver     = "solver"
	stageMetadata   = "metadata"
)

// Engine orchestrates one full recomputation.
type Engine struct {
	store    repository.Store
	snapshot snapshot.Store

	competitions        []string
	seasons             []string
	fixtureCompetitions []string
	standingsN          int
	outputDir           string

	updater        *updater.Updater
	builder        *calibration.Builder
	solver         *solver.Solver
	continuityOpts []continuity.Option

	now    func() time.Time
	logger logger.Logger
}

// New constructs an Engine over store.
func New(store repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		standingsN: standings.DefaultN,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("engine")
	}
	if e.updater == nil {
		e.updater = updater.New()
	}
	if e.builder == nil {
		e.builder = calibration.NewBuilder()
	}
	if e.solver == nil {
		e.solver = solver.New()
	}
	return e
}

// Result is the complete output of a run. Nothing in it has been persisted.
type Result struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time

	Ratings      []rating.Entry // rating desc, team id asc
	Teams        []model.Team   // snapshot to save, sorted by id
	Seasons      []updater.SeasonResult
	Standings    []model.Standings
	Assignments  []continuity.Assignment
	Writes       []model.MatchRatings
	Calibration  calibration.Result
	Strengths    []model.CompetitionStrength
	Observations []solver.Observation
	Report       *model.Report

	table *rating.Store
}

// View converts r to the read model served by the HTTP API.
func (r *Result) View() api.View {
	return api.View{
		RunID:       r.RunID,
		CompletedAt: r.CompletedAt,
		Table:       r.table,
		Calibration: r.Calibration.Curve.Bins,
		Strengths:   r.Strengths,
		Report:      r.Report,
	}
}

// runStandings serves standings computed earlier in this run ahead of the
// persisted ones.
type runStandings struct {
	local map[string]model.Standings
	store repository.StandingsStore
}

func standingsKey(competition, seasonLabel string) string {
	return competition + "\x00" + seasonLabel
}

func (s *runStandings) Standings(ctx context.Context, competition, seasonLabel string) (model.Standings, bool, error) {
	if st, ok := s.local[standingsKey(competition, seasonLabel)]; ok {
		return st, true, nil
	}
	return s.store.Standings(ctx, competition, seasonLabel)
}

// Run recomputes every configured competition-season, then the calibration
// curve and, when fixture competitions are set, the competition strengths.
// Any fatal error discards the whole run.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	res, err := e.run(ctx)
	if err != nil {
		metrics.RecordRun("failed", 0)
		e.logger.Error(ctx, "run failed", logger.Error(err))
		return Result{}, err
	}
	return res, nil
}

func (e *Engine) run(ctx context.Context) (Result, error) {
	if len(e.competitions) == 0 || len(e.seasons) == 0 {
		return Result{}, ErrNoCompetitions
	}
	res := Result{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
		Report:    model.NewReport(),
	}
	log := e.logger.With(logger.String("run", res.RunID))

	var seed []model.Team
	if e.snapshot != nil {
		teams, err := e.snapshot.Load(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("load snapshot: %w", err)
		}
		seed = teams
	}
	// Ratings are recomputed from scratch; the snapshot only keeps teams
	// this run never rates.
	store := rating.NewStore(nil)
	log.Info(ctx, "run started",
		logger.Int("seed_teams", len(seed)),
		logger.Int("competitions", len(e.competitions)),
		logger.Int("seasons", len(e.seasons)),
	)

	if err := e.checkMetadata(ctx, res.Report); err != nil {
		return Result{}, err
	}

	source := &runStandings{local: make(map[string]model.Standings), store: e.store}
	resolver := continuity.NewResolver(source, e.continuityOpts...)

	var rated []model.Match
	for _, label := range season.Sort(e.seasons) {
		for _, comp := range e.competitions {
			sr, st, err := e.season(ctx, store, resolver, comp, label, &res)
			if err != nil {
				return Result{}, err
			}
			source.local[standingsKey(comp, label)] = st
			res.Seasons = append(res.Seasons, sr)
			res.Standings = append(res.Standings, st)
			res.Writes = append(res.Writes, sr.Writes...)
			rated = append(rated, sr.Rated...)
		}
	}

	cal, err := e.builder.Build(ctx, rated, e.now())
	if err != nil {
		return Result{}, err
	}
	res.Calibration = cal
	res.Report.Processed(stageCalib, int(cal.Observed))
	for _, s := range cal.Skips {
		res.Report.Skip(s)
	}
	metrics.UpdateCalibrationObserved(cal.Observed)

	if len(e.fixtureCompetitions) > 0 {
		fixtures, err := e.store.Fixtures(ctx, e.fixtureCompetitions)
		if err != nil {
			return Result{}, fmt.Errorf("load fixtures: %w", err)
		}
		sol, err := e.solver.Solve(ctx, fixtures, solver.NewAdjacent(rated), e.store, cal.Curve, e.now())
		if err != nil {
			return Result{}, err
		}
		res.Strengths = sol.Strengths
		res.Observations = sol.Observations
		res.Report.Processed(stageSolver, len(sol.Observations))
		for _, s := range sol.Skips {
			res.Report.Skip(s)
		}
	}

	final := rating.NewStore(seed)
	for _, t := range store.Snapshot() {
		final.Set(t.ID, t.Rating, t.UpdatedAt)
	}
	res.table = final
	res.Ratings = final.Table()
	res.Teams = final.Snapshot()
	res.CompletedAt = e.now()
	metrics.UpdateTeamsRated(final.Len())

	for _, name := range res.Report.StageNames() {
		sc := res.Report.Stages[name]
		skipped := 0
		for _, n := range sc.Skipped {
			skipped += n
		}
		log.Info(ctx, "stage summary",
			logger.String("stage", name),
			logger.Int("processed", sc.Processed),
			logger.Int("skipped", skipped),
		)
	}
	log.Info(ctx, "run completed",
		logger.Int("teams", len(res.Ratings)),
		logger.Int("matches_rated", len(res.Writes)),
		logger.Int("competitions_solved", len(res.Strengths)),
		logger.Duration("elapsed", res.CompletedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

// checkMetadata reports configured competitions the metadata store does not
// know. They are still processed.
func (e *Engine) checkMetadata(ctx context.Context, report *model.Report) error {
	seen := make(map[string]struct{})
	for _, id := range append(append([]string(nil), e.competitions...), e.fixtureCompetitions...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		c, ok, err := e.store.Competition(ctx, id)
		if err != nil {
			return fmt.Errorf("competition %s metadata: %w", id, err)
		}
		if !ok {
			report.Skip(model.Skip{Stage: stageMetadata, Reason: model.SkipMissingMetadata, Detail: "competition " + id})
			e.logger.Warn(ctx, "competition has no metadata", logger.String("competition", id))
			continue
		}
		report.Processed(stageMetadata, 1)
		e.logger.Debug(ctx, "competition",
			logger.String("competition", c.ID),
			logger.String("type", string(c.Type)),
			logger.Int("level", c.Level),
		)
	}
	return nil
}

// season resolves, rates and aggregates one competition-season.
func (e *Engine) season(ctx context.Context, store *rating.Store, resolver *continuity.Resolver, comp, label string, res *Result) (updater.SeasonResult, model.Standings, error) {
	matches, err := e.store.Matches(ctx, comp, label)
	if err != nil {
		return updater.SeasonResult{}, model.Standings{}, fmt.Errorf("load matches %s %s: %w", comp, label, err)
	}
	valid, skips := e.updater.Prepare(ctx, matches)
	for _, s := range skips {
		res.Report.Skip(s)
	}

	// Every new team is assigned before the first match is rated.
	start := e.now()
	resolution, err := resolver.Resolve(ctx, store, comp, label, updater.Teams(valid), start)
	if err != nil {
		return updater.SeasonResult{}, model.Standings{}, fmt.Errorf("resolve %s %s: %w", comp, label, err)
	}
	if resolution.LabelFallback {
		res.Report.Skip(model.Skip{Stage: stageContinuity, Reason: model.SkipSeasonLabel, Detail: comp + " " + label})
	}
	res.Report.Processed(stageContinuity, len(resolution.Assignments))
	res.Assignments = append(res.Assignments, resolution.Assignments...)

	sr, err := e.updater.Run(ctx, store, comp, label, valid, e.now())
	if err != nil {
		return updater.SeasonResult{}, model.Standings{}, err
	}
	res.Report.Processed(stageUpdater, len(sr.Rated))

	st := standings.Aggregate(comp, label, sr.Rated, store, e.standingsN, e.now())
	res.Report.Processed(stageStandings, 1)
	metrics.RecordSeasonComplete(comp)
	e.logger.Info(ctx, "season complete",
		logger.String("competition", comp),
		logger.String("season", label),
		logger.Int("matches", len(sr.Rated)),
		logger.Int("skipped", len(skips)),
		logger.Int("new_teams", len(resolution.Assignments)),
	)
	return sr, st, nil
}

type artifact struct {
	name  string
	write func(io.Writer) error
}

// Persist writes a successful run: the rating snapshot, match ratings,
// standings, then the CSV artifacts. It stops at the first failure and the
// error names the stores already written.
func (e *Engine) Persist(ctx context.Context, res Result) error {
	written, err := e.persist(ctx, res)
	if err != nil {
		metrics.RecordRun("failed", 0)
		e.logger.Error(ctx, "persist failed",
			logger.String("run", res.RunID),
			logger.Any("written", written),
			logger.Error(err),
		)
		if len(written) > 0 {
			return fmt.Errorf("%w (already written: %s)", err, strings.Join(written, ", "))
		}
		return err
	}
	metrics.RecordRun("ok", res.CompletedAt.Unix())
	return nil
}

// Store names reported by a partial Persist.
const (
	wroteSnapshot  = "snapshot"
	wroteMatches   = "match_ratings"
	wroteStandings = "standings"
	wroteArtifacts = "artifacts"
)

func (e *Engine) persist(ctx context.Context, res Result) ([]string, error) {
	var written []string
	if e.snapshot != nil {
		if err := e.snapshot.Save(ctx, res.Teams); err != nil {
			return written, fmt.Errorf("save snapshot: %w", err)
		}
		written = append(written, wroteSnapshot)
	}
	if err := e.store.WriteRatings(ctx, res.Writes, res.CompletedAt); err != nil {
		return written, fmt.Errorf("write match ratings: %w", err)
	}
	written = append(written, wroteMatches)
	for i, st := range res.Standings {
		inserted, err := e.store.SaveStandings(ctx, st)
		if err != nil {
			if i > 0 {
				written = append(written, wroteStandings)
			}
			return written, fmt.Errorf("save standings %s %s: %w", st.Competition, st.Season, err)
		}
		if !inserted {
			e.logger.Debug(ctx, "standings already recorded",
				logger.String("competition", st.Competition),
				logger.String("season", st.Season),
			)
		}
	}
	written = append(written, wroteStandings)
	if e.outputDir == "" {
		return written, nil
	}

	artifacts := []artifact{
		{export.CalibrationFile, func(w io.Writer) error {
			return export.WriteCalibration(w, res.RunID, res.Calibration.ComputedAt, res.Calibration.Curve.Bins)
		}},
		{export.RatingsFile, func(w io.Writer) error {
			return export.WriteRatings(w, res.RunID, res.Ratings)
		}},
	}
	if len(res.Strengths) > 0 {
		artifacts = append(artifacts, artifact{export.StrengthsFile, func(w io.Writer) error {
			return export.WriteStrengths(w, res.RunID, res.Strengths)
		}})
	}
	for i, a := range artifacts {
		if err := export.ToFile(e.outputDir, a.name, a.write); err != nil {
			if i > 0 {
				written = append(written, wroteArtifacts)
			}
			return written, err
		}
	}
	e.logger.Info(ctx, "run persisted",
		logger.String("run", res.RunID),
		logger.String("output_dir", e.outputDir),
	)
	return append(written, wroteArtifacts), nil
}
