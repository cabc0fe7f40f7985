// Package solver estimates relative competition strengths from matches
// between teams of different domestic competitions.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/elorank/internal/domain/calibration"
	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/outcome"
	"github.com/okian/elorank/pkg/logger"
	"github.com/okian/elorank/pkg/metrics"
	"gonum.org/v1/gonum/mat"
)

// Sentinel kinds for solver errors.
var (
	ErrNumericalFailure = errors.New("solver numerical failure")
	ErrInsufficientData = errors.New("no qualifying inter-competition fixtures")
)

// Default solver configuration constants.
const (
	DefaultTolerance = 1e-6
	stageName        = "solver"
)

// Membership resolves a team's domestic competition for a season.
type Membership interface {
	DomesticCompetition(ctx context.Context, teamID, season string) (string, bool, error)
}

// Option applies a configuration option to the Solver.
type Option func(*Solver)

// WithHomeAdvantage sets the home advantage added to the home rating for the gap.
func WithHomeAdvantage(ha float64) Option {
	return func(s *Solver) {
		s.homeAdvantage = ha
	}
}

// WithTolerance sets the allowed deviation of the offset sum from zero.
func WithTolerance(tol float64) Option {
	return func(s *Solver) {
		if tol > 0 {
			s.tolerance = tol
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// Solver implements the Massey least-squares strength estimate.
type Solver struct {
	homeAdvantage float64
	tolerance     float64
	logger        logger.Logger
}

// New creates a Solver with reference constants unless overridden.
func New(opts ...Option) *Solver {
	s := &Solver{
		homeAdvantage: outcome.DefaultHomeAdvantage,
		tolerance:     DefaultTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named(stageName)
	}
	return s
}

// Observation is one qualifying fixture.
type Observation struct {
	MatchID  string
	Home     string // home team's domestic competition
	Away     string // away team's domestic competition
	Gap      float64
	Residual float64
}

// Result is a solved strength table plus the fixtures it was built from.
type Result struct {
	Strengths    []model.CompetitionStrength // best to worst
	Observations []Observation
	Skips        []model.Skip
}

// Solve resolves each fixture's competitions and adjacent ratings, computes
// residuals against curve, and solves for zero-sum competition offsets.
func (s *Solver) Solve(ctx context.Context, fixtures []model.Match, ratings *Adjacent, members Membership, curve calibration.Curve, at time.Time) (Result, error) {
	start := time.Now()
	var res Result
	skip := func(m *model.Match, reason model.SkipReason, detail string) {
		res.Skips = append(res.Skips, model.Skip{Stage: stageName, MatchID: m.ID, Reason: reason, Detail: detail})
		metrics.RecordMatchSkipped(stageName, string(reason))
		s.logger.Warn(ctx, "skipping fixture",
			logger.String("match", m.ID),
			logger.String("reason", string(reason)),
			logger.String("detail", detail),
		)
	}

	for i := range fixtures {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("solver aborted: %w", err)
		}
		m := &fixtures[i]
		if err := m.Validate(); err != nil {
			skip(m, model.SkipMissingFields, err.Error())
			continue
		}
		hc, ok, err := members.DomesticCompetition(ctx, m.HomeID, m.Season)
		if err != nil {
			return Result{}, fmt.Errorf("membership of %s: %w", m.HomeID, err)
		}
		if !ok {
			skip(m, model.SkipMissingMetadata, "home "+m.HomeID)
			continue
		}
		ac, ok, err := members.DomesticCompetition(ctx, m.AwayID, m.Season)
		if err != nil {
			return Result{}, fmt.Errorf("membership of %s: %w", m.AwayID, err)
		}
		if !ok {
			skip(m, model.SkipMissingMetadata, "away "+m.AwayID)
			continue
		}
		if hc == ac {
			skip(m, model.SkipSameCompetition, hc)
			continue
		}
		hr, ok := ratings.Rating(m.HomeID, hc, m.Season, m.Timestamp)
		if !ok {
			skip(m, model.SkipMissingRating, "home "+m.HomeID)
			continue
		}
		ar, ok := ratings.Rating(m.AwayID, ac, m.Season, m.Timestamp)
		if !ok {
			skip(m, model.SkipMissingRating, "away "+m.AwayID)
			continue
		}
		gap := hr + s.homeAdvantage - ar
		expected, err := curve.Expected(gap)
		if err != nil {
			return Result{}, fmt.Errorf("expected margin for %s: %w", m.ID, err)
		}
		res.Observations = append(res.Observations, Observation{
			MatchID:  m.ID,
			Home:     hc,
			Away:     ac,
			Gap:      gap,
			Residual: float64(m.Margin()) - expected,
		})
	}
	if len(res.Observations) == 0 {
		return Result{}, ErrInsufficientData
	}

	strengths, err := s.massey(res.Observations, at)
	if err != nil {
		return Result{}, err
	}
	res.Strengths = strengths

	metrics.RecordStageDuration(stageName, float64(time.Since(start).Milliseconds()))
	metrics.UpdateCompetitionsSolved(len(strengths))
	s.logger.Info(ctx, "competition strengths solved",
		logger.Int("fixtures", len(res.Observations)),
		logger.Int("skipped", len(res.Skips)),
		logger.Int("competitions", len(strengths)),
	)
	for _, cs := range strengths {
		s.logger.Info(ctx, "competition strength",
			logger.String("competition", cs.Competition),
			logger.Float64("offset", cs.Offset),
			logger.Int("fixtures", cs.Fixtures),
		)
	}
	return res, nil
}

// massey builds M and y over the sorted competitions, replaces the last row
// with the zero-sum constraint and solves by SVD least squares.
func (s *Solver) massey(obs []Observation, at time.Time) ([]model.CompetitionStrength, error) {
	fixtures := make(map[string]int)
	for _, o := range obs {
		fixtures[o.Home]++
		fixtures[o.Away]++
	}
	comps := make([]string, 0, len(fixtures))
	for c := range fixtures {
		comps = append(comps, c)
	}
	sort.Strings(comps)
	idx := make(map[string]int, len(comps))
	for i, c := range comps {
		idx[c] = i
	}

	n := len(comps)
	m := mat.NewDense(n, n, nil)
	y := mat.NewVecDense(n, nil)
	for _, o := range obs {
		a, b := idx[o.Home], idx[o.Away]
		m.Set(a, a, m.At(a, a)+1)
		m.Set(b, b, m.At(b, b)+1)
		m.Set(a, b, m.At(a, b)-1)
		m.Set(b, a, m.At(b, a)-1)
		y.SetVec(a, y.AtVec(a)+o.Residual)
		y.SetVec(b, y.AtVec(b)-o.Residual)
	}
	for j := 0; j < n; j++ {
		m.Set(n-1, j, 1)
	}
	y.SetVec(n-1, 0)

	x, err := leastSquares(m, y)
	if err != nil {
		return nil, err
	}

	var sum float64
	out := make([]model.CompetitionStrength, n)
	for i, c := range comps {
		v := x.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("offset of %s is %v: %w", c, v, ErrNumericalFailure)
		}
		sum += v
		out[i] = model.CompetitionStrength{Competition: c, Offset: v, Fixtures: fixtures[c], ComputedAt: at}
	}
	if math.Abs(sum) > s.tolerance {
		return nil, fmt.Errorf("offsets sum to %v: %w", sum, ErrNumericalFailure)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Offset != out[j].Offset {
			return out[i].Offset > out[j].Offset
		}
		return out[i].Competition < out[j].Competition
	})
	return out, nil
}

// leastSquares returns the minimum-norm solution of a·x = b. Singular values
// below eps·n relative to the largest are treated as zero.
func leastSquares(a *mat.Dense, b *mat.VecDense) (*mat.VecDense, error) {
	r, _ := a.Dims()
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, fmt.Errorf("svd did not converge: %w", ErrNumericalFailure)
	}
	rank := svd.Rank(float64(r) * eps)
	if rank == 0 {
		return nil, fmt.Errorf("system has rank 0: %w", ErrNumericalFailure)
	}
	var x mat.VecDense
	svd.SolveVecTo(&x, b, rank)
	return &x, nil
}

var eps = math.Nextafter(1, 2) - 1 //nolint:gochecknoglobals // machine epsilon
