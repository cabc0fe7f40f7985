// Package calibration bins historical matches by rating gap and maps each bin
// to the empirical average goal margin.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Sentinel kinds for calibration errors.
var (
	ErrInvalidLayout  = errors.New("invalid calibration layout")
	ErrLayoutMismatch = errors.New("calibration layouts differ")
	ErrEmptyCurve     = errors.New("calibration curve has no bins")
)

// Layout partitions the real line into fixed-width bins over [-MaxGap, MaxGap)
// plus two saturating tails.
type Layout struct {
	Width  float64
	MaxGap float64
	inner  int
}

// NewLayout validates width and maxGap. maxGap must be a whole number of widths.
func NewLayout(width, maxGap float64) (Layout, error) {
	if !(width > 0) || !(maxGap > 0) || math.IsInf(width, 0) || math.IsInf(maxGap, 0) {
		return Layout{}, fmt.Errorf("width %v max gap %v: %w", width, maxGap, ErrInvalidLayout)
	}
	n, ok := InnerBins(width, maxGap)
	if !ok {
		return Layout{}, fmt.Errorf("max gap %v is not a multiple of width %v: %w", maxGap, width, ErrInvalidLayout)
	}
	return Layout{Width: width, MaxGap: maxGap, inner: n}, nil
}

// binTolerance absorbs rounding in 2*maxGap/width, e.g. 1.2/0.3.
const binTolerance = 1e-9

// InnerBins returns how many width-wide bins cover [-maxGap, maxGap), and
// false when that is not a whole number.
func InnerBins(width, maxGap float64) (int, bool) {
	n := 2 * maxGap / width
	r := math.Round(n)
	if r < 1 || math.Abs(n-r) > binTolerance*math.Max(1, r) {
		return 0, false
	}
	return int(r), true
}

// Len returns the total number of bins including both tails.
func (l Layout) Len() int {
	return l.inner + 2
}

// Index returns the bin index of gap. NaN has no bin and returns -1.
func (l Layout) Index(gap float64) int {
	switch {
	case math.IsNaN(gap):
		return -1
	case gap < -l.MaxGap:
		return 0
	case gap >= l.MaxGap:
		return l.inner + 1
	}
	i := 1 + int(math.Floor((gap+l.MaxGap)/l.Width))
	if i > l.inner {
		i = l.inner
	}
	return i
}

// Bounds returns [lower, upper) of bin i.
func (l Layout) Bounds(i int) (lower, upper float64) {
	switch {
	case i <= 0:
		return math.Inf(-1), -l.MaxGap
	case i > l.inner:
		return l.MaxGap, math.Inf(1)
	}
	lower = -l.MaxGap + float64(i-1)*l.Width
	return lower, lower + l.Width
}

// Label returns a human readable interval for bin i.
func (l Layout) Label(i int) string {
	lower, upper := l.Bounds(i)
	switch {
	case math.IsInf(lower, -1):
		return "<" + num(upper)
	case math.IsInf(upper, 1):
		return ">=" + num(lower)
	default:
		return "[" + num(lower) + "," + num(upper) + ")"
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
