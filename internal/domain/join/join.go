// Package join pairs one model's harmonized predictions with ground truth.
package join

import (
	"fmt"

	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
)

// Stats describes how many rows each side contributed to a join.
type Stats struct {
	Truth              int
	Predictions        int
	Joined             int
	DroppedTruth       int
	DroppedPredictions int
	// Warning is set when either side dropped more than the allowed ratio.
	Warning *JoinMismatchWarning
}

// Join performs an inner join of truth and predictions on SubjectID. Rows
// present on one side only are dropped and counted in Stats.
func Join(
	modelName string,
	truth, predictions []model.LabelRecord,
	attrs []taxonomy.Attribute,
	opts ...Option,
) (*model.EvaluationSet, Stats, error) {
	o := options{maxDropRatio: DefaultMaxDropRatio}
	for _, opt := range opts {
		opt(&o)
	}

	stats := Stats{Truth: len(truth), Predictions: len(predictions)}

	byID, err := index(truth)
	if err != nil {
		return nil, stats, fmt.Errorf("ground truth: %w", err)
	}
	if _, err := index(predictions); err != nil {
		return nil, stats, fmt.Errorf("%s predictions: %w", modelName, err)
	}

	rows := make([]model.Row, 0, len(predictions))
	for _, p := range predictions {
		t, ok := byID[p.SubjectID]
		if !ok {
			stats.DroppedPredictions++
			continue
		}
		c := p.Clone()
		rows = append(rows, model.Row{
			SubjectID:   p.SubjectID,
			Truth:       t.Clone().Values,
			Predicted:   c.Values,
			Confidences: c.Confidences,
		})
	}
	stats.Joined = len(rows)
	stats.DroppedTruth = stats.Truth - stats.Joined

	set, err := model.NewEvaluationSet(modelName, attrs, rows)
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", modelName, err)
	}

	dt, dp := ratio(stats.DroppedTruth, stats.Truth), ratio(stats.DroppedPredictions, stats.Predictions)
	if dt > o.maxDropRatio || dp > o.maxDropRatio {
		stats.Warning = &JoinMismatchWarning{
			Model:                   modelName,
			DroppedTruthRatio:       dt,
			DroppedPredictionsRatio: dp,
			MaxDropRatio:            o.maxDropRatio,
		}
	}
	return set, stats, nil
}

func index(recs []model.LabelRecord) (map[int64]model.LabelRecord, error) {
	m := make(map[int64]model.LabelRecord, len(recs))
	for _, r := range recs {
		if _, dup := m[r.SubjectID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateSubject, r.SubjectID)
		}
		m[r.SubjectID] = r
	}
	return m, nil
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
