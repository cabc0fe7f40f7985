package app

import (
	"time"

	"github.com/okian/elorank/internal/adapters/snapshot"
	"github.com/okian/elorank/internal/config"
	"github.com/okian/elorank/internal/domain/calibration"
	"github.com/okian/elorank/internal/domain/continuity"
	"github.com/okian/elorank/internal/domain/outcome"
	"github.com/okian/elorank/internal/domain/solver"
	"github.com/okian/elorank/internal/domain/updater"
	"github.com/okian/elorank/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCompetitions sets the competitions rated each season, in processing order.
func WithCompetitions(ids ...string) Option {
	return func(e *Engine) {
		e.competitions = append([]string(nil), ids...)
	}
}

// WithSeasons sets the season labels to process. They are sorted by start year.
func WithSeasons(labels ...string) Option {
	return func(e *Engine) {
		e.seasons = append([]string(nil), labels...)
	}
}

// WithFixtureCompetitions sets the inter-competition fixture sources fed to
// the solver. No competitions disables the solver stage.
func WithFixtureCompetitions(ids ...string) Option {
	return func(e *Engine) {
		e.fixtureCompetitions = append([]string(nil), ids...)
	}
}

// WithSnapshot sets the rating snapshot loaded at start and saved by Persist.
func WithSnapshot(s snapshot.Store) Option {
	return func(e *Engine) {
		e.snapshot = s
	}
}

// WithUpdater sets the match rating updater.
func WithUpdater(u *updater.Updater) Option {
	return func(e *Engine) {
		if u != nil {
			e.updater = u
		}
	}
}

// WithCalibration sets the gap calibration builder.
func WithCalibration(b *calibration.Builder) Option {
	return func(e *Engine) {
		if b != nil {
			e.builder = b
		}
	}
}

// WithSolver sets the cross-competition solver.
func WithSolver(s *solver.Solver) Option {
	return func(e *Engine) {
		if s != nil {
			e.solver = s
		}
	}
}

// WithContinuity sets options for the per-run continuity resolver.
func WithContinuity(opts ...continuity.Option) Option {
	return func(e *Engine) {
		e.continuityOpts = append(e.continuityOpts, opts...)
	}
}

// WithStandingsN sets the size of the top and bottom standings snapshots.
func WithStandingsN(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.standingsN = n
		}
	}
}

// WithOutputDir sets where Persist writes the CSV artifacts. Empty skips export.
func WithOutputDir(dir string) Option {
	return func(e *Engine) {
		e.outputDir = dir
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// FromConfig translates a validated configuration into engine options.
func FromConfig(cfg *config.Config) []Option {
	m := outcome.New(outcome.WithScale(cfg.Scale), outcome.WithHomeAdvantage(cfg.HomeAdvantage))
	return []Option{
		WithCompetitions(cfg.Competitions...),
		WithSeasons(cfg.Seasons...),
		WithFixtureCompetitions(cfg.FixtureCompetitions...),
		WithStandingsN(cfg.StandingsN),
		WithOutputDir(cfg.OutputDir),
		WithUpdater(updater.New(updater.WithKFactor(cfg.KFactor), updater.WithModel(m))),
		WithContinuity(continuity.WithInitialRating(cfg.InitialRating)),
		WithCalibration(calibration.NewBuilder(
			calibration.WithBinWidth(cfg.BinWidth),
			calibration.WithMaxGap(cfg.MaxGap),
			calibration.WithBatchSize(cfg.BatchSize),
			calibration.WithWorkers(cfg.BatchWorkers),
			calibration.WithMinSamples(cfg.MinBinSamples),
		)),
		WithSolver(solver.New(
			solver.WithHomeAdvantage(cfg.HomeAdvantage),
			solver.WithTolerance(cfg.ZeroSumTolerance),
		)),
	}
}
