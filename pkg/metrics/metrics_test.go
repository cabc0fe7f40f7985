package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the engine namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.matchesRated.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "elorank_engine_matches_rated_total")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithDeltaBuckets([]float64{-1, 0, 1}),
				WithMetricsEnabled(false),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options apply", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "unit")
				So(manager.enabled, ShouldBeFalse)
				So(manager.deltaBuckets, ShouldResemble, []float64{-1, 0, 1})
			})
		})

		Convey("When a second manager uses the same registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then registration panics on duplicates", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When matches are rated and skipped", func() {
			before := testutil.ToFloat64(globalManager.matchesRated)
			RecordMatchRated(7.08)
			RecordMatchRated(-3.2)
			RecordMatchSkipped("updater", "missing_fields")

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.matchesRated)-before, ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.matchesSkipped.WithLabelValues("updater", "missing_fields")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When collection is disabled", func() {
			SetEnabled(false)
			before := testutil.ToFloat64(globalManager.matchesRated)
			RecordMatchRated(1)
			SetEnabled(true)

			Convey("Then per-record counters stay put", func() {
				So(testutil.ToFloat64(globalManager.matchesRated), ShouldEqual, before)
			})
		})

		Convey("When run gauges are set", func() {
			RecordRun("ok", 1_800_000_000)
			UpdateTeamsRated(40)
			UpdateCalibrationObserved(12)
			UpdateCompetitionsSolved(3)

			Convey("Then they report the last values", func() {
				So(testutil.ToFloat64(globalManager.runLastUnix), ShouldEqual, 1_800_000_000)
				So(testutil.ToFloat64(globalManager.teamsRated), ShouldEqual, 40)
				So(testutil.ToFloat64(globalManager.calibrationObserved), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.competitionsSolved), ShouldEqual, 3)
			})
		})

		Convey("When the remaining recorders are called", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					RecordSeasonComplete("ENG-1")
					RecordNewTeam("bottom_mean")
					RecordStageDuration("solver", 1.5)
					RecordStoreLatency("file", "save", 2)
					RecordStoreError("postgres", "load")
					RecordSnapshotSaved()
					RecordHTTPRequest("/ratings", "GET", "200")
					RecordHTTPRequestDuration("/ratings", "GET", "200", 3)
					RecordRun("failed", 0)
				}, ShouldNotPanic)
			})
		})

		Convey("When the registry is requested", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
