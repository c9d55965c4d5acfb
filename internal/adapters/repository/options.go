package repository

import "github.com/okian/faceval/pkg/logger"

// Option applies a configuration option to the CSVStore.
type Option func(*CSVStore)

// WithComma sets the field delimiter, ',' by default.
func WithComma(r rune) Option {
	return func(s *CSVStore) {
		if r != 0 {
			s.comma = r
		}
	}
}

// WithLogger sets the logger used for load summaries.
func WithLogger(l logger.Logger) Option {
	return func(s *CSVStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// ReadOption tunes how one prediction file is decoded.
type ReadOption func(*readOptions)

type readOptions struct {
	scale map[string]float64
}

// WithConfidenceScale divides the named confidence fields by the given
// factor, e.g. {"race": 100} for percent scores.
func WithConfidenceScale(scale map[string]float64) ReadOption {
	return func(o *readOptions) {
		o.scale = scale
	}
}
