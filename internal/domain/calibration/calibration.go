// Package calibration measures how well a model's stated confidence matches
// its observed accuracy: reliability buckets and Expected Calibration Error.
package calibration

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
)

// Bucket is one point of a reliability curve. MeanConfidence and Accuracy are
// NaN when Count is zero.
type Bucket struct {
	Lo             float64
	Hi             float64
	MeanConfidence float64
	Accuracy       float64
	Count          int
}

// Empty reports whether no sample fell into the bucket.
func (b Bucket) Empty() bool { return b.Count == 0 }

// MarshalJSON encodes NaN statistics as null.
func (b Bucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lo             float64  `json:"lo"`
		Hi             float64  `json:"hi"`
		MeanConfidence *float64 `json:"mean_confidence"`
		Accuracy       *float64 `json:"accuracy"`
		Count          int      `json:"count"`
	}{b.Lo, b.Hi, finite(b.MeanConfidence), finite(b.Accuracy), b.Count})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Result is the calibration of one attribute against one confidence field.
type Result struct {
	Attribute taxonomy.Attribute `json:"attribute"`
	Field     string             `json:"field"`
	Strategy  string             `json:"strategy"`
	Buckets   []Bucket           `json:"buckets"`
	ECE       float64            `json:"ece"`
	// Total is the number of bucketed rows; Skipped rows had no value for Field.
	Total   int `json:"total"`
	Skipped int `json:"skipped"`
}

// Predicate decides whether a row counts as a correct prediction.
type Predicate func(model.Row) bool

type options struct {
	predicate Predicate
}

// Option configures Calibrate.
type Option func(*options)

// WithPredicate overrides the default truth == prediction correctness test.
func WithPredicate(p Predicate) Option {
	return func(o *options) {
		if p != nil {
			o.predicate = p
		}
	}
}

// Calibrate buckets the confidences stored under field for attr and derives
// ECE. Confidences must already be in [0,1].
func Calibrate(set *model.EvaluationSet, attr taxonomy.Attribute, field string, strategy Strategy, opts ...Option) (*Result, error) {
	if strategy == nil {
		return nil, ErrNilStrategy
	}
	if !set.Has(attr) {
		return nil, fmt.Errorf("%w: %s", ErrAttributeNotEvaluated, attr)
	}
	o := options{predicate: func(r model.Row) bool { return r.Correct(attr) }}
	for _, opt := range opts {
		opt(&o)
	}

	res := &Result{Attribute: attr, Field: field, Strategy: strategy.Name()}
	samples := make([]Sample, 0, set.Len())
	for _, r := range set.Rows() {
		c, ok := r.Confidences[field]
		if !ok {
			res.Skipped++
			continue
		}
		if math.IsNaN(c) || c < 0 || c > 1 {
			return nil, &InvalidConfidenceError{SubjectID: r.SubjectID, Field: field, Value: c}
		}
		samples = append(samples, Sample{Confidence: c, Correct: o.predicate(r)})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s field %q", ErrNoConfidences, set.Model(), field)
	}

	res.Buckets = strategy.Bucket(samples)
	res.Total = len(samples)
	res.ECE = ECE(res.Buckets)
	return res, nil
}

// ECE is the count-weighted mean of |accuracy - mean confidence| over
// non-empty buckets. It is zero for no samples.
func ECE(buckets []Bucket) float64 {
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	if total == 0 {
		return 0
	}
	ece := 0.0
	for _, b := range buckets {
		if b.Empty() {
			continue
		}
		ece += math.Abs(b.Accuracy-b.MeanConfidence) * float64(b.Count) / float64(total)
	}
	return ece
}
