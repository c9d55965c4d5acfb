package scoring

import (
	"fmt"

	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
)

// Predictions is one model's harmonized output.
type Predictions struct {
	Model   string
	Records []model.LabelRecord
}

// AgreementResult compares two models on the subjects both of them labeled.
type AgreementResult struct {
	ModelA string `json:"model_a"`
	ModelB string `json:"model_b"`
	Shared int    `json:"shared"`
	// Rates holds the fraction of shared subjects with identical labels.
	Rates map[taxonomy.Attribute]float64 `json:"rates"`
	// MeanAgeBinGap is the mean absolute age-bin difference, nil when age is
	// not compared.
	MeanAgeBinGap *float64 `json:"mean_age_bin_gap,omitempty"`
}

// Agreement measures how often two models agree with each other, independent
// of ground truth. Subjects missing a value on either side are not shared.
func Agreement(a, b Predictions, attrs []taxonomy.Attribute) (*AgreementResult, error) {
	other := make(map[int64]model.LabelRecord, len(b.Records))
	for _, r := range b.Records {
		other[r.SubjectID] = r
	}

	res := &AgreementResult{
		ModelA: a.Model,
		ModelB: b.Model,
		Rates:  make(map[taxonomy.Attribute]float64, len(attrs)),
	}
	matches := make(map[taxonomy.Attribute]int, len(attrs))
	gapSum := 0

	ageTax := taxonomy.Age.Taxonomy()
	for _, ra := range a.Records {
		rb, ok := other[ra.SubjectID]
		if !ok || !complete(ra, attrs) || !complete(rb, attrs) {
			continue
		}
		res.Shared++
		for _, attr := range attrs {
			if ra.Values[attr] == rb.Values[attr] {
				matches[attr]++
			}
			if attr != taxonomy.Age {
				continue
			}
			ia, err := ageTax.Index(ra.Values[attr])
			if err != nil {
				return nil, fmt.Errorf("%s subject %d: %w", a.Model, ra.SubjectID, err)
			}
			ib, err := ageTax.Index(rb.Values[attr])
			if err != nil {
				return nil, fmt.Errorf("%s subject %d: %w", b.Model, rb.SubjectID, err)
			}
			gapSum += abs(ia - ib)
		}
	}
	if res.Shared == 0 {
		return nil, fmt.Errorf("%w: %s and %s share no subjects", ErrEmptySet, a.Model, b.Model)
	}

	for _, attr := range attrs {
		res.Rates[attr] = float64(matches[attr]) / float64(res.Shared)
		if attr == taxonomy.Age {
			gap := float64(gapSum) / float64(res.Shared)
			res.MeanAgeBinGap = &gap
		}
	}
	return res, nil
}

func complete(r model.LabelRecord, attrs []taxonomy.Attribute) bool {
	for _, a := range attrs {
		if r.Values[a] == "" {
			return false
		}
	}
	return true
}
