package join

// DefaultMaxDropRatio is the dropped-row fraction above which a join warns.
const DefaultMaxDropRatio = 0.05

type options struct {
	maxDropRatio float64
}

// Option configures Join.
type Option func(*options)

// WithMaxDropRatio sets the dropped-row fraction tolerated on either side
// before Stats.Warning is set. Values outside [0,1] are ignored.
func WithMaxDropRatio(r float64) Option {
	return func(o *options) {
		if r >= 0 && r <= 1 {
			o.maxDropRatio = r
		}
	}
}
