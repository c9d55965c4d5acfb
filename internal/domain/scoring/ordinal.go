package scoring

import (
	"fmt"

	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
)

// Ordinal scores an ordered attribute. Besides the categorical metrics it
// measures how many bins a prediction is off by.
type Ordinal struct {
	*Categorical
}

// NewOrdinal builds an ordinal engine. tax must be ordered.
func NewOrdinal(set *model.EvaluationSet, tax taxonomy.Taxonomy) (*Ordinal, error) {
	if !tax.Ordered() {
		return nil, fmt.Errorf("%w: %s", ErrNotOrdinal, tax.Attribute())
	}
	c, err := NewCategorical(set, tax)
	if err != nil {
		return nil, err
	}
	return &Ordinal{Categorical: c}, nil
}

// Distances returns |truth index - predicted index| per row, in set order.
func (o *Ordinal) Distances() []int {
	out := make([]int, len(o.truth))
	for i := range o.truth {
		out[i] = abs(o.truth[i] - o.pred[i])
	}
	return out
}

// MeanBinDistance is the mean absolute bin distance. It is zero exactly when
// every prediction hits its bin.
func (o *Ordinal) MeanBinDistance() float64 {
	sum := 0
	for _, d := range o.Distances() {
		sum += d
	}
	return float64(sum) / float64(len(o.truth))
}

// WithinK returns the fraction of rows at most k bins away from the truth.
func (o *Ordinal) WithinK(k int) (float64, error) {
	if k < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeK, k)
	}
	hits := 0
	for _, d := range o.Distances() {
		if d <= k {
			hits++
		}
	}
	return float64(hits) / float64(len(o.truth)), nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
