package repository

import "github.com/okian/elorank/pkg/logger"

type settings struct {
	logger logger.Logger
}

// Option applies a configuration option to a store.
type Option func(*settings)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func apply(opts []Option) settings {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("store")
	}
	return s
}
