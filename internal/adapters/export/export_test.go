package export_test

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/elorank/internal/adapters/export"
	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func read(b []byte) [][]string {
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	So(err, ShouldBeNil)
	return rows
}

func TestExport(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	runID := uuid.NewString()

	Convey("Given a calibration table with tails", t, func() {
		bins := []model.Bin{
			{Label: "<-500", Lower: math.Inf(-1), Upper: -500, Count: 2, AverageMargin: -2.5, LowConfidence: false},
			{Label: "[-500,-450)", Lower: -500, Upper: -450, LowConfidence: true},
			{Label: ">=500", Lower: 500, Upper: math.Inf(1), Count: 1, AverageMargin: 3},
		}
		var buf bytes.Buffer
		So(export.WriteCalibration(&buf, runID, at, bins), ShouldBeNil)
		rows := read(buf.Bytes())

		Convey("Then each bin is a row with empty infinite bounds", func() {
			So(rows, ShouldHaveLength, 4)
			So(rows[0][0], ShouldEqual, "run_id")
			So(rows[1], ShouldResemble, []string{runID, "2026-10-01T12:00:00Z", "<-500", "", "-500", "2", "-2.5", "false"})
			So(rows[2][7], ShouldEqual, "true")
			So(rows[3][4], ShouldEqual, "")
		})
	})

	Convey("Given a solved strength table", t, func() {
		strengths := []model.CompetitionStrength{
			{Competition: "ENG-1", Offset: 0.4, Fixtures: 12, ComputedAt: at},
			{Competition: "NED-1", Offset: -0.4, Fixtures: 7, ComputedAt: at},
		}
		var buf bytes.Buffer
		So(export.WriteStrengths(&buf, runID, strengths), ShouldBeNil)
		rows := read(buf.Bytes())

		Convey("Then rows are ranked in order", func() {
			So(rows[1], ShouldResemble, []string{runID, "2026-10-01T12:00:00Z", "1", "ENG-1", "0.4", "12"})
			So(rows[2][2], ShouldEqual, "2")
		})
	})

	Convey("Given a rating table", t, func() {
		store := rating.NewStore([]model.Team{{ID: "b", Rating: 1490, UpdatedAt: at}, {ID: "a", Rating: 1510, UpdatedAt: at}})
		var buf bytes.Buffer
		So(export.WriteRatings(&buf, runID, store.Table()), ShouldBeNil)
		rows := read(buf.Bytes())

		Convey("Then the best team comes first", func() {
			So(rows[1], ShouldResemble, []string{runID, "1", "a", "1510", "2026-10-01T12:00:00Z"})
		})
	})

	Convey("Given an output directory", t, func() {
		dir := filepath.Join(t.TempDir(), "out")

		Convey("When the writer succeeds", func() {
			err := export.ToFile(dir, export.StrengthsFile, func(w io.Writer) error {
				return export.WriteStrengths(w, runID, nil)
			})

			Convey("Then the artifact exists", func() {
				So(err, ShouldBeNil)
				b, err := os.ReadFile(filepath.Join(dir, export.StrengthsFile))
				So(err, ShouldBeNil)
				So(read(b), ShouldHaveLength, 1)
			})
		})

		Convey("When the writer fails", func() {
			boom := errors.New("boom")
			err := export.ToFile(dir, export.RatingsFile, func(io.Writer) error { return boom })

			Convey("Then nothing is left behind", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				entries, _ := os.ReadDir(dir)
				So(entries, ShouldBeEmpty)
			})
		})
	})
}
