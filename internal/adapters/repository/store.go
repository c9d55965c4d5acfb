// Package repository loads and stores label records as CSV files.
//
// Ground truth:  image_id,gender,race,age[,...]
// Predictions:   image_id,model,age,gender,race[,<field>_confidence...]
//
// image_id may be a bare integer or an image path such as train/123.jpg.
package repository

import (
	"context"

	"github.com/okian/faceval/internal/domain/model"
)

// ConfidenceSuffix marks confidence columns in prediction files.
const ConfidenceSuffix = "_confidence"

// Store provides read/write access to label record files.
type Store interface {
	// LoadTruth reads ground-truth records. Confidence columns are ignored.
	LoadTruth(ctx context.Context, path string) ([]model.LabelRecord, error)
	// LoadPredictions reads one model's prediction records.
	LoadPredictions(ctx context.Context, path string, opts ...ReadOption) ([]model.LabelRecord, error)
	// SaveTruth writes ground-truth records.
	SaveTruth(ctx context.Context, path string, recs []model.LabelRecord) error
	// SavePredictions writes prediction records tagged with modelName.
	SavePredictions(ctx context.Context, path, modelName string, recs []model.LabelRecord) error
}

// FilterBySubjects keeps the records whose SubjectID is in ids, preserving order.
func FilterBySubjects(recs []model.LabelRecord, ids map[int64]struct{}) []model.LabelRecord {
	out := make([]model.LabelRecord, 0, len(ids))
	for _, r := range recs {
		if _, ok := ids[r.SubjectID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// SubjectSet returns the set of subject ids present in recs.
func SubjectSet(recs []model.LabelRecord) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(recs))
	for _, r := range recs {
		ids[r.SubjectID] = struct{}{}
	}
	return ids
}
