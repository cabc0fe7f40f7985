package calibration

import (
	"fmt"

	"github.com/okian/elorank/internal/domain/model"
)

// Accumulator holds per-bin margin sums and counts. Integer sums keep merging
// exact, so batches combine in any order to the same totals.
type Accumulator struct {
	layout Layout
	sums   []int64
	counts []int64
}

// NewAccumulator creates an empty accumulator for layout.
func NewAccumulator(layout Layout) *Accumulator {
	return &Accumulator{
		layout: layout,
		sums:   make([]int64, layout.Len()),
		counts: make([]int64, layout.Len()),
	}
}

// Add records one observation. It reports false for a gap with no bin.
func (a *Accumulator) Add(gap float64, margin int) bool {
	i := a.layout.Index(gap)
	if i < 0 {
		return false
	}
	a.sums[i] += int64(margin)
	a.counts[i]++
	return true
}

// Merge adds other's totals into a.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other.layout != a.layout {
		return ErrLayoutMismatch
	}
	for i := range a.sums {
		a.sums[i] += other.sums[i]
		a.counts[i] += other.counts[i]
	}
	return nil
}

// Total returns the number of observations.
func (a *Accumulator) Total() int64 {
	var n int64
	for _, c := range a.counts {
		n += c
	}
	return n
}

// Curve derives averages once from the cumulative totals. Empty bins average
// zero; bins with fewer than minSamples observations are low confidence.
func (a *Accumulator) Curve(minSamples int64) Curve {
	if minSamples < 1 {
		minSamples = 1
	}
	bins := make([]model.Bin, a.layout.Len())
	for i := range bins {
		lower, upper := a.layout.Bounds(i)
		b := model.Bin{
			Label: a.layout.Label(i),
			Lower: lower,
			Upper: upper,
			Sum:   a.sums[i],
			Count: a.counts[i],
		}
		if b.Count > 0 {
			b.AverageMargin = float64(b.Sum) / float64(b.Count)
		}
		b.LowConfidence = b.Count < minSamples
		bins[i] = b
	}
	return Curve{layout: a.layout, Bins: bins}
}

// Curve maps a rating gap to an expected goal margin.
type Curve struct {
	layout Layout
	Bins   []model.Bin
}

// Lookup returns the bin containing gap; gaps beyond the range saturate to the
// boundary bins.
func (c Curve) Lookup(gap float64) (model.Bin, error) {
	if len(c.Bins) == 0 {
		return model.Bin{}, ErrEmptyCurve
	}
	i := c.layout.Index(gap)
	if i < 0 {
		return model.Bin{}, fmt.Errorf("gap %v: %w", gap, model.ErrInputValidation)
	}
	return c.Bins[i], nil
}

// Expected returns the calibrated goal margin for gap.
func (c Curve) Expected(gap float64) (float64, error) {
	b, err := c.Lookup(gap)
	if err != nil {
		return 0, err
	}
	return b.AverageMargin, nil
}
