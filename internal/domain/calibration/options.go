package calibration

import "github.com/okian/elorank/pkg/logger"

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithBinWidth sets the bin width.
func WithBinWidth(w float64) Option {
	return func(b *Builder) {
		b.width = w
	}
}

// WithMaxGap sets the symmetric range covered by fixed-width bins.
func WithMaxGap(g float64) Option {
	return func(b *Builder) {
		b.maxGap = g
	}
}

// WithBatchSize sets how many matches each batch holds.
func WithBatchSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithWorkers sets how many batches are accumulated concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithMinSamples sets the count under which a bin is flagged low confidence.
func WithMinSamples(n int64) Option {
	return func(b *Builder) {
		if n > 0 {
			b.minSamples = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}
