package calibration

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/elorank/internal/domain/model"
	"github.com/okian/elorank/pkg/logger"
	"github.com/okian/elorank/pkg/metrics"
)

// Default calibration configuration constants.
const (
	DefaultBinWidth   = 50.0
	DefaultMaxGap     = 500.0
	DefaultBatchSize  = 5000
	DefaultWorkers    = 4
	DefaultMinSamples = 1
	stageName         = "calibration"
)

// Builder rebuilds the calibration curve in full from a match corpus.
type Builder struct {
	width      float64
	maxGap     float64
	batchSize  int
	workers    int
	minSamples int64
	logger     logger.Logger
}

// NewBuilder creates a Builder with reference constants unless overridden.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		width:      DefaultBinWidth,
		maxGap:     DefaultMaxGap,
		batchSize:  DefaultBatchSize,
		workers:    DefaultWorkers,
		minSamples: DefaultMinSamples,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named(stageName)
	}
	return b
}

// Result is a built curve plus what was skipped building it.
type Result struct {
	Curve      Curve
	Observed   int64
	Skips      []model.Skip
	ComputedAt time.Time
}

type batch struct {
	index   int
	matches []model.Match
}

type partial struct {
	index int
	acc   *Accumulator
	skips []model.Skip
}

// Build accumulates gap = home_adjusted - away against home-away goals over
// matches, in batches processed by a small worker pool. Averages are computed
// once from the merged totals.
func (b *Builder) Build(ctx context.Context, matches []model.Match, at time.Time) (Result, error) {
	layout, err := NewLayout(b.width, b.maxGap)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()

	batches := make(chan batch)
	partials := make(chan partial)

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			b.runWorker(ctx, name, layout, batches, partials)
		}("calibration-worker-" + strconv.Itoa(i))
	}

	go func() {
		defer close(batches)
		for i, idx := 0, 0; i < len(matches); i, idx = i+b.batchSize, idx+1 {
			end := i + b.batchSize
			if end > len(matches) {
				end = len(matches)
			}
			select {
			case <-ctx.Done():
				return
			case batches <- batch{index: idx, matches: matches[i:end]}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(partials)
	}()

	byIndex := make(map[int]partial)
	for p := range partials {
		byIndex[p.index] = p
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("calibration aborted: %w", err)
	}

	total := NewAccumulator(layout)
	res := Result{ComputedAt: at}
	for i := 0; i < len(byIndex); i++ {
		p, ok := byIndex[i]
		if !ok {
			return Result{}, fmt.Errorf("calibration batch %d missing", i)
		}
		if err := total.Merge(p.acc); err != nil {
			return Result{}, err
		}
		res.Skips = append(res.Skips, p.skips...)
	}
	res.Curve = total.Curve(b.minSamples)
	res.Observed = total.Total()

	metrics.RecordStageDuration(stageName, float64(time.Since(start).Milliseconds()))
	b.logger.Info(ctx, "calibration curve built",
		logger.Int64("observed", res.Observed),
		logger.Int("skipped", len(res.Skips)),
		logger.Int("bins", layout.Len()),
		logger.Int("batches", len(byIndex)),
	)
	return res, nil
}

// runWorker accumulates batches until the batch channel closes or ctx ends.
func (b *Builder) runWorker(ctx context.Context, name string, layout Layout, in <-chan batch, out chan<- partial) {
	log := b.logger.Named(name)
	for {
		select {
		case <-ctx.Done():
			return
		case bt, ok := <-in:
			if !ok {
				return
			}
			p := accumulate(layout, bt)
			log.Debug(ctx, "batch accumulated",
				logger.Int("batch", bt.index),
				logger.Int("matches", len(bt.matches)),
				logger.Int("skipped", len(p.skips)),
			)
			select {
			case <-ctx.Done():
				return
			case out <- p:
			}
		}
	}
}

func accumulate(layout Layout, bt batch) partial {
	p := partial{index: bt.index, acc: NewAccumulator(layout)}
	for i := range bt.matches {
		m := &bt.matches[i]
		if m.HomeGoals == nil || m.AwayGoals == nil {
			p.skips = append(p.skips, model.Skip{Stage: stageName, MatchID: m.ID, Reason: model.SkipMissingFields})
			continue
		}
		if m.Ratings == nil {
			p.skips = append(p.skips, model.Skip{Stage: stageName, MatchID: m.ID, Reason: model.SkipUnrated})
			continue
		}
		gap := m.Ratings.HomePreAdjusted - m.Ratings.AwayPre
		if !p.acc.Add(gap, m.Margin()) {
			p.skips = append(p.skips, model.Skip{Stage: stageName, MatchID: m.ID, Reason: model.SkipMissingFields, Detail: "gap is NaN"})
		}
	}
	return p
}
