// Package scoring computes agreement metrics between predicted and
// ground-truth labels: confusion matrices, accuracy, macro-F1 and, for ordered
// taxonomies, bin-distance metrics.
//
// Engines are built once per (evaluation set, taxonomy) and are read-only
// afterwards, so they can be shared between goroutines.
package scoring

import (
	"fmt"

	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
)

// Normalization selects how ConfusionMatrix scales its cells.
type Normalization int

const (
	// NormalizeNone returns raw counts.
	NormalizeNone Normalization = iota
	// NormalizeRow divides each row by its truth-class count.
	NormalizeRow
)

// String implements fmt.Stringer.
func (n Normalization) String() string {
	switch n {
	case NormalizeNone:
		return "none"
	case NormalizeRow:
		return "row"
	default:
		return fmt.Sprintf("Normalization(%d)", int(n))
	}
}

// ClassScore is the one-vs-rest breakdown for a single label.
type ClassScore struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Categorical scores one unordered attribute of an evaluation set.
type Categorical struct {
	tax    taxonomy.Taxonomy
	truth  []int
	pred   []int
	counts [][]int
}

// NewCategorical indexes the truth and prediction labels of set under tax.
// Labels outside tax fail with *taxonomy.LabelOutOfTaxonomyError.
func NewCategorical(set *model.EvaluationSet, tax taxonomy.Taxonomy) (*Categorical, error) {
	if set == nil || set.Len() == 0 {
		return nil, ErrEmptySet
	}
	attr := tax.Attribute()
	if !set.Has(attr) {
		return nil, fmt.Errorf("%w: %s", ErrAttributeNotEvaluated, attr)
	}

	truth, pred := set.Labels(attr)
	c := &Categorical{
		tax:    tax,
		truth:  make([]int, len(truth)),
		pred:   make([]int, len(pred)),
		counts: square(tax.Len()),
	}
	for i := range truth {
		ti, err := tax.Index(truth[i])
		if err != nil {
			return nil, fmt.Errorf("ground truth: %w", err)
		}
		pi, err := tax.Index(pred[i])
		if err != nil {
			return nil, fmt.Errorf("prediction: %w", err)
		}
		c.truth[i], c.pred[i] = ti, pi
		c.counts[ti][pi]++
	}
	return c, nil
}

// Taxonomy returns the taxonomy the engine indexes by.
func (c *Categorical) Taxonomy() taxonomy.Taxonomy { return c.tax }

// Len returns the number of scored rows.
func (c *Categorical) Len() int { return len(c.truth) }

// ConfusionMatrix returns a fresh matrix where [i][j] counts truth i predicted
// as j. With NormalizeRow each non-empty row sums to 1 and rows of absent
// classes are all zero.
func (c *Categorical) ConfusionMatrix(norm Normalization) [][]float64 {
	n := c.tax.Len()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		total := 0
		for j := 0; j < n; j++ {
			out[i][j] = float64(c.counts[i][j])
			total += c.counts[i][j]
		}
		if norm == NormalizeRow && total > 0 {
			for j := range out[i] {
				out[i][j] /= float64(total)
			}
		}
	}
	return out
}

// Accuracy returns the fraction of rows whose prediction equals the truth.
func (c *Categorical) Accuracy() float64 {
	hits := 0
	for i := range c.truth {
		if c.truth[i] == c.pred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(c.truth))
}

// PerClass returns precision, recall, F1 and support for every taxonomy label.
func (c *Categorical) PerClass() []ClassScore {
	n := c.tax.Len()
	out := make([]ClassScore, n)
	for k := 0; k < n; k++ {
		tp := c.counts[k][k]
		support, predicted := 0, 0
		for j := 0; j < n; j++ {
			support += c.counts[k][j]
			predicted += c.counts[j][k]
		}
		precision := safeDiv(tp, predicted)
		recall := safeDiv(tp, support)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		out[k] = ClassScore{
			Label:     c.tax.Label(k),
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   support,
		}
	}
	return out
}

// MacroF1 is the unweighted mean of per-class F1 over every taxonomy label,
// including labels that never occur.
func (c *Categorical) MacroF1() float64 {
	scores := c.PerClass()
	sum := 0.0
	for _, s := range scores {
		sum += s.F1
	}
	return sum / float64(len(scores))
}

func square(n int) [][]int {
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
	}
	return m
}

func safeDiv(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
