package standings_test

import (
	"testing"
	"time"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/rating"
	"github.com/okian/elorank/internal/domain/standings"
	. "github.com/smartystreets/goconvey/convey"
)

func m(home, away string, hg, ag int) model.Match {
	return model.Match{HomeID: home, AwayID: away, HomeGoals: model.Goals(hg), AwayGoals: model.Goals(ag)}
}

func TestAggregate(t *testing.T) {
	Convey("Given a finished five-team season", t, func() {
		store := rating.NewStore([]model.Team{
			{ID: "a", Rating: 1600}, {ID: "b", Rating: 1550}, {ID: "c", Rating: 1500},
			{ID: "d", Rating: 1450}, {ID: "e", Rating: 1400},
		})
		matches := []model.Match{
			m("a", "b", 2, 0), // a 3
			m("c", "d", 1, 1), // c 1, d 1
			m("e", "a", 0, 1), // a 6
			m("b", "c", 3, 1), // b 3
			m("d", "e", 0, 0), // d 2, e 1
		}
		at := time.Unix(1_700_000_000, 0).UTC()
		st := standings.Aggregate("ENG-1", "2023/2024", matches, store, 3, at)

		Convey("Then teams are ordered by points, ties by first appearance", func() {
			So(st.Teams, ShouldResemble, []string{"a", "b", "d", "c", "e"})
			So(st.Points["a"], ShouldEqual, 6)
			So(st.Points["e"], ShouldEqual, 1)
		})

		Convey("And the top and bottom snapshots carry post-season ratings", func() {
			So(st.Top, ShouldResemble, map[string]float64{"a": 1600, "b": 1550, "d": 1450})
			So(st.Bottom, ShouldResemble, map[string]float64{"d": 1450, "c": 1500, "e": 1400})
			mean, ok := st.MeanBottom()
			So(ok, ShouldBeTrue)
			So(mean, ShouldEqual, 1450)
			So(len(st.Final), ShouldEqual, 5)
			So(st.CreatedAt, ShouldEqual, at)
		})
	})

	Convey("Given a season with fewer teams than N", t, func() {
		store := rating.NewStore([]model.Team{{ID: "a", Rating: 1510}, {ID: "b", Rating: 1490}})
		st := standings.Aggregate("X", "2023/2024", []model.Match{m("a", "b", 1, 0)}, store, 3, time.Time{})

		Convey("Then both snapshots hold every team", func() {
			So(len(st.Top), ShouldEqual, 2)
			So(len(st.Bottom), ShouldEqual, 2)
			So(st.Contains("b"), ShouldBeTrue)
			So(st.Contains("z"), ShouldBeFalse)
		})
	})
}
