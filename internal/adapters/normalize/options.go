package normalize

import (
	"github.com/okian/faceval/internal/domain/harmonize"
	"github.com/okian/faceval/pkg/logger"
)

// maxLineBytes bounds a single JSONL line.
const maxLineBytes = 4 << 20

type options struct {
	harmonizer *harmonize.Harmonizer
	scale      map[string]float64
	logger     logger.Logger
}

// Option configures Read.
type Option func(*options)

// WithHarmonizer sets the harmonizer applied to every label. Defaults to
// harmonize.Default().
func WithHarmonizer(h *harmonize.Harmonizer) Option {
	return func(o *options) {
		if h != nil {
			o.harmonizer = h
		}
	}
}

// WithConfidenceScale divides the named confidence fields by the given factor.
func WithConfidenceScale(scale map[string]float64) Option {
	return func(o *options) {
		o.scale = scale
	}
}

// WithLogger logs skipped records at debug level.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
