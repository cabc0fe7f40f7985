package solver_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/elorank/internal/domain/calibration"
	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/solver"
	"github.com/okian/elorank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type members map[string]string

func (m members) DomesticCompetition(_ context.Context, team, _ string) (string, bool, error) {
	c, ok := m[team]
	return c, ok, nil
}

type brokenMembers struct{}

func (brokenMembers) DomesticCompetition(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("boom")
}

func fixture(id, home, away string, hg, ag int, ts int64) model.Match {
	return model.Match{ID: id, Competition: "UCL", Season: "2023/2024", HomeID: home, AwayID: away,
		HomeGoals: model.Goals(hg), AwayGoals: model.Goals(ag), Timestamp: ts}
}

func domestic(comp, home, away string, ts int64, hr, ar float64) model.Match {
	return model.Match{ID: comp + home + away, Competition: comp, Season: "2023/2024", HomeID: home, AwayID: away,
		HomeGoals: model.Goals(1), AwayGoals: model.Goals(1), Timestamp: ts,
		Ratings: &model.Ratings{HomePre: hr, HomePreAdjusted: hr + 100, AwayPre: ar, AwayPreAdjusted: ar}}
}

func flatCurve() calibration.Curve {
	l, _ := calibration.NewLayout(50, 500)
	return calibration.NewAccumulator(l).Curve(1)
}

func sum(strengths []model.CompetitionStrength) float64 {
	var s float64
	for _, cs := range strengths {
		s += cs.Offset
	}
	return s
}

func offsets(strengths []model.CompetitionStrength) map[string]float64 {
	out := make(map[string]float64, len(strengths))
	for _, cs := range strengths {
		out[cs.Competition] = cs.Offset
	}
	return out
}

func TestAdjacent(t *testing.T) {
	Convey("Given a team with domestic matches around a fixture", t, func() {
		adj := solver.NewAdjacent([]model.Match{
			domestic("A", "a1", "a2", 100, 1510, 1490),
			domestic("A", "a2", "a1", 300, 1480, 1525),
			domestic("A", "a1", "a3", 200, 1600, 1400),
		})

		Convey("Then the next match after the date wins", func() {
			r, ok := adj.Rating("a1", "A", "2023/2024", 150)
			So(ok, ShouldBeTrue)
			So(r, ShouldEqual, 1600)
		})

		Convey("Then the most recent earlier match is used when none follows", func() {
			r, ok := adj.Rating("a1", "A", "2023/2024", 400)
			So(ok, ShouldBeTrue)
			So(r, ShouldEqual, 1525)
		})

		Convey("Then a match on the same instant is not adjacent", func() {
			r, ok := adj.Rating("a3", "A", "2023/2024", 200)
			So(ok, ShouldBeFalse)
			So(r, ShouldEqual, 0)
		})

		Convey("Then other competitions and seasons are not considered", func() {
			_, ok := adj.Rating("a1", "B", "2023/2024", 150)
			So(ok, ShouldBeFalse)
			_, ok = adj.Rating("a1", "A", "2022/2023", 150)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSolver(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatalf("logger init: %v", err)
	}
	ctx := context.Background()
	at := time.Unix(1_800_000_000, 0).UTC()

	rated := []model.Match{
		domestic("A", "a1", "a2", 10, 1500, 1500),
		domestic("B", "b1", "b2", 10, 1500, 1500),
		domestic("C", "c1", "c2", 10, 1500, 1500),
		domestic("D", "d1", "d2", 10, 1500, 1500),
	}
	adj := solver.NewAdjacent(rated)
	who := members{"a1": "A", "a2": "A", "b1": "B", "b2": "B", "c1": "C", "c2": "C", "d1": "D", "d2": "D"}

	Convey("Given a chain of three competitions and a flat curve", t, func() {
		fixtures := []model.Match{
			fixture("f1", "a1", "b1", 2, 0, 20),
			fixture("f2", "b1", "c1", 1, 0, 20),
		}
		res, err := solver.New().Solve(ctx, fixtures, adj, who, flatCurve(), at)

		Convey("Then the offsets solve the constrained system", func() {
			So(err, ShouldBeNil)
			o := offsets(res.Strengths)
			So(o["A"], ShouldAlmostEqual, 5.0/3, 1e-9)
			So(o["B"], ShouldAlmostEqual, -1.0/3, 1e-9)
			So(o["C"], ShouldAlmostEqual, -4.0/3, 1e-9)
			So(math.Abs(sum(res.Strengths)), ShouldBeLessThan, 1e-6)
		})

		Convey("Then strengths are sorted best to worst with fixture counts", func() {
			So(res.Strengths[0].Competition, ShouldEqual, "A")
			So(res.Strengths[2].Competition, ShouldEqual, "C")
			So(res.Strengths[0].Fixtures, ShouldEqual, 1)
			So(res.Strengths[1].Fixtures, ShouldEqual, 2)
			So(res.Strengths[0].ComputedAt, ShouldEqual, at)
		})

		Convey("Then the gap includes home advantage", func() {
			So(res.Observations, ShouldHaveLength, 2)
			So(res.Observations[0].Gap, ShouldEqual, 100)
			So(res.Observations[0].Residual, ShouldEqual, 2)
		})
	})

	Convey("Given two disconnected pairs of competitions", t, func() {
		fixtures := []model.Match{
			fixture("f1", "a1", "b1", 3, 1, 20),
			fixture("f2", "c1", "d1", 0, 1, 20),
		}
		res, err := solver.New().Solve(ctx, fixtures, adj, who, flatCurve(), at)

		Convey("Then each pair keeps its relative offset and the total is zero", func() {
			So(err, ShouldBeNil)
			o := offsets(res.Strengths)
			So(o["A"]-o["B"], ShouldAlmostEqual, 2, 1e-9)
			So(o["C"]-o["D"], ShouldAlmostEqual, -1, 1e-9)
			So(math.Abs(sum(res.Strengths)), ShouldBeLessThan, 1e-6)
		})
	})

	Convey("Given a calibrated curve", t, func() {
		l, _ := calibration.NewLayout(50, 500)
		acc := calibration.NewAccumulator(l)
		acc.Add(120, 1)
		acc.Add(130, 2)
		curve := acc.Curve(1)
		strong := solver.NewAdjacent([]model.Match{
			domestic("A", "a1", "a2", 30, 1525, 1500),
			domestic("B", "b1", "b2", 30, 1500, 1500),
		})
		res, err := solver.New().Solve(ctx, []model.Match{fixture("f1", "a1", "b1", 2, 0, 20)}, strong, who, curve, at)

		Convey("Then the residual is the margin less the bin average", func() {
			So(err, ShouldBeNil)
			So(res.Observations[0].Gap, ShouldEqual, 125)
			So(res.Observations[0].Residual, ShouldEqual, 0.5)
		})
	})

	Convey("Given fixtures that cannot qualify", t, func() {
		fixtures := []model.Match{
			fixture("same", "a1", "a2", 1, 0, 20),
			fixture("meta", "a1", "x9", 1, 0, 20),
			fixture("rating", "a1", "b2x", 1, 0, 20),
			{ID: "goals", HomeID: "a1", AwayID: "b1"},
			fixture("ok", "a1", "b1", 1, 0, 20),
		}
		w := members{"a1": "A", "a2": "A", "b1": "B", "b2x": "B"}
		res, err := solver.New().Solve(ctx, fixtures, adj, w, flatCurve(), at)

		Convey("Then each is skipped with its reason", func() {
			So(err, ShouldBeNil)
			reasons := map[string]model.SkipReason{}
			for _, s := range res.Skips {
				reasons[s.MatchID] = s.Reason
			}
			So(reasons["same"], ShouldEqual, model.SkipSameCompetition)
			So(reasons["meta"], ShouldEqual, model.SkipMissingMetadata)
			So(reasons["rating"], ShouldEqual, model.SkipMissingRating)
			So(reasons["goals"], ShouldEqual, model.SkipMissingFields)
			So(res.Observations, ShouldHaveLength, 1)
		})
	})

	Convey("Given no qualifying fixtures", t, func() {
		_, err := solver.New().Solve(ctx, []model.Match{fixture("same", "a1", "a2", 1, 0, 20)}, adj, who, flatCurve(), at)

		Convey("Then the run fails with insufficient data", func() {
			So(errors.Is(err, solver.ErrInsufficientData), ShouldBeTrue)
		})
	})

	Convey("Given a membership source that fails", t, func() {
		_, err := solver.New().Solve(ctx, []model.Match{fixture("f1", "a1", "b1", 1, 0, 20)}, adj, brokenMembers{}, flatCurve(), at)

		Convey("Then the error is surfaced", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, solver.ErrInsufficientData), ShouldBeFalse)
		})
	})

	Convey("Given an empty curve", t, func() {
		_, err := solver.New().Solve(ctx, []model.Match{fixture("f1", "a1", "b1", 1, 0, 20)}, adj, who, calibration.Curve{}, at)

		Convey("Then the run fails", func() {
			So(errors.Is(err, calibration.ErrEmptyCurve), ShouldBeTrue)
		})
	})
}
