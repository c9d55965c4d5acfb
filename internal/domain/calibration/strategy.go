package calibration

import (
	"fmt"
	"math"
	"sort"
)

// DefaultBins is the bucket count used by FixedWidth when Bins is not positive.
const DefaultBins = 10

// Sample is one bucketable prediction.
type Sample struct {
	Confidence float64
	Correct    bool
}

// Strategy groups samples into calibration buckets. Implementations return
// buckets ordered by confidence.
type Strategy interface {
	Name() string
	Bucket(samples []Sample) []Bucket
}

// FixedWidth partitions [0,1] into Bins equal half-open intervals; a
// confidence of exactly 1 falls into the last one. Empty buckets are kept.
type FixedWidth struct {
	Bins int
}

// Name implements Strategy.
func (f FixedWidth) Name() string { return fmt.Sprintf("fixed-width/%d", f.bins()) }

func (f FixedWidth) bins() int {
	if f.Bins <= 0 {
		return DefaultBins
	}
	return f.Bins
}

// Bucket implements Strategy.
func (f FixedWidth) Bucket(samples []Sample) []Bucket {
	n := f.bins()
	acc := make([]accumulator, n)
	for _, s := range samples {
		acc[f.index(s.Confidence, n)].add(s)
	}
	out := make([]Bucket, n)
	for i := range acc {
		out[i] = acc[i].bucket(edge(i, n), edge(i+1, n))
	}
	return out
}

// index finds i with edge(i) <= c < edge(i+1), using the same arithmetic as
// the reported bucket bounds so values on a boundary land in the upper bucket.
func (f FixedWidth) index(c float64, n int) int {
	i := int(math.Floor(c * float64(n)))
	if i > 0 && c < edge(i, n) {
		i--
	}
	if i < n-1 && c >= edge(i+1, n) {
		i++
	}
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func edge(i, n int) float64 { return float64(i) / float64(n) }

// DistinctValue puts every distinct confidence value in its own bucket, for
// models that only ever emit a handful of scores.
type DistinctValue struct{}

// Name implements Strategy.
func (DistinctValue) Name() string { return "distinct-value" }

// Bucket implements Strategy.
func (DistinctValue) Bucket(samples []Sample) []Bucket {
	groups := make(map[float64]*accumulator)
	keys := make([]float64, 0)
	for _, s := range samples {
		a, ok := groups[s.Confidence]
		if !ok {
			a = &accumulator{}
			groups[s.Confidence] = a
			keys = append(keys, s.Confidence)
		}
		a.add(s)
	}
	sort.Float64s(keys)
	out := make([]Bucket, len(keys))
	for i, k := range keys {
		out[i] = groups[k].bucket(k, k)
	}
	return out
}

type accumulator struct {
	count   int
	correct int
	confSum float64
}

func (a *accumulator) add(s Sample) {
	a.count++
	a.confSum += s.Confidence
	if s.Correct {
		a.correct++
	}
}

func (a *accumulator) bucket(lo, hi float64) Bucket {
	b := Bucket{Lo: lo, Hi: hi, Count: a.count, MeanConfidence: math.NaN(), Accuracy: math.NaN()}
	if a.count > 0 {
		b.MeanConfidence = a.confSum / float64(a.count)
		b.Accuracy = float64(a.correct) / float64(a.count)
	}
	return b
}
