// Package export writes the run artifacts as flat CSV tables.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/internal/domain/rating"
)

// ErrExport marks an artifact that could not be written.
var ErrExport = errors.New("export failed")

// Artifact file names.
const (
	CalibrationFile = "calibration.csv"
	StrengthsFile   = "competition_strengths.csv"
	RatingsFile     = "ratings.csv"
)

// Header rows.
var (
	calibrationHeader = []string{"run_id", "computed_at", "bin", "lower", "upper", "count", "average_margin", "low_confidence"} //nolint:gochecknoglobals // fixed header
	strengthsHeader   = []string{"run_id", "computed_at", "rank", "competition", "offset", "fixtures"}                          //nolint:gochecknoglobals // fixed header
	ratingsHeader     = []string{"run_id", "rank", "team", "rating", "updated_at"}                                              //nolint:gochecknoglobals // fixed header
)

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func num(v float64) string {
	if math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func write(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	return nil
}

// WriteCalibration writes one row per bin; infinite tail bounds are empty.
func WriteCalibration(w io.Writer, runID string, computedAt time.Time, bins []model.Bin) error {
	rows := make([][]string, 0, len(bins))
	for _, b := range bins {
		rows = append(rows, []string{
			runID, ts(computedAt), b.Label, num(b.Lower), num(b.Upper),
			strconv.FormatInt(b.Count, 10), num(b.AverageMargin), strconv.FormatBool(b.LowConfidence),
		})
	}
	return write(w, calibrationHeader, rows)
}

// WriteStrengths writes strengths in the given order, best first.
func WriteStrengths(w io.Writer, runID string, strengths []model.CompetitionStrength) error {
	rows := make([][]string, 0, len(strengths))
	for i, s := range strengths {
		rows = append(rows, []string{
			runID, ts(s.ComputedAt), strconv.Itoa(i + 1), s.Competition, num(s.Offset), strconv.Itoa(s.Fixtures),
		})
	}
	return write(w, strengthsHeader, rows)
}

// WriteRatings writes a ranked rating table.
func WriteRatings(w io.Writer, runID string, table []rating.Entry) error {
	rows := make([][]string, 0, len(table))
	for _, e := range table {
		rows = append(rows, []string{runID, strconv.Itoa(e.Rank), e.TeamID, num(e.Rating), ts(e.UpdatedAt)})
	}
	return write(w, ratingsHeader, rows)
}

// ToFile creates dir/name and hands it to fn. The file is only put in place
// when fn succeeds.
func ToFile(dir, name string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	if err := fn(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	return nil
}
