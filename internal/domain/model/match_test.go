package model_test

import (
	"errors"
	"testing"

	model "github.com/okian/elorank/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestMatchValidate(t *testing.T) {
	convey.Convey("Given match records", t, func() {
		convey.Convey("When every essential field is present", func() {
			m := model.Match{ID: "m1", HomeID: "a", AwayID: "b", HomeGoals: model.Goals(2), AwayGoals: model.Goals(0)}

			convey.Convey("Then it validates and exposes margin and points", func() {
				convey.So(m.Validate(), convey.ShouldBeNil)
				convey.So(m.Margin(), convey.ShouldEqual, 2)
				home, away := m.Points()
				convey.So(home, convey.ShouldEqual, 3)
				convey.So(away, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When goals are missing", func() {
			m := model.Match{ID: "m2", HomeID: "a", AwayID: "b", HomeGoals: model.Goals(1)}
			err := m.Validate()

			convey.Convey("Then it is an input validation error naming the field", func() {
				convey.So(errors.Is(err, model.ErrInputValidation), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "away_goals")
			})
		})

		convey.Convey("When team ids are blank", func() {
			m := model.Match{ID: "m3", HomeID: " ", HomeGoals: model.Goals(1), AwayGoals: model.Goals(1)}
			err := m.Validate()

			convey.Convey("Then both ids are reported", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "home_id, away_id")
			})
		})

		convey.Convey("When a draw is played", func() {
			m := model.Match{ID: "m4", HomeID: "a", AwayID: "b", HomeGoals: model.Goals(1), AwayGoals: model.Goals(1)}
			home, away := m.Points()

			convey.Convey("Then both sides get one point", func() {
				convey.So(home, convey.ShouldEqual, 1)
				convey.So(away, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestReport(t *testing.T) {
	convey.Convey("Given two reports", t, func() {
		a := model.NewReport()
		a.Processed("updater", 3)
		a.Skip(model.Skip{Stage: "updater", MatchID: "x", Reason: model.SkipMissingFields})

		b := model.NewReport()
		b.Processed("solver", 1)
		b.Skip(model.Skip{Stage: "updater", MatchID: "y", Reason: model.SkipMissingFields})

		convey.Convey("When merged", func() {
			a.Merge(b)

			convey.Convey("Then counts accumulate per stage and reason", func() {
				convey.So(a.Stages["updater"].Processed, convey.ShouldEqual, 3)
				convey.So(a.Stages["updater"].Skipped[model.SkipMissingFields], convey.ShouldEqual, 2)
				convey.So(a.Stages["solver"].Processed, convey.ShouldEqual, 1)
				convey.So(a.TotalSkipped(), convey.ShouldEqual, 2)
				convey.So(a.StageNames(), convey.ShouldResemble, []string{"solver", "updater"})
			})
		})
	})
}
