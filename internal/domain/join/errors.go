package join

import (
	"fmt"

	"github.com/okian/faceval/internal/domain/model"
)

// Errors returned by Join. They alias the evaluation-set invariants.
var (
	ErrDuplicateSubject = model.ErrDuplicateSubject
	ErrMissingValue     = model.ErrMissingValue
)

// JoinMismatchWarning is attached to Stats when too many rows of either side
// found no partner. It is informational and never returned as an error.
type JoinMismatchWarning struct {
	Model                   string
	DroppedTruthRatio       float64
	DroppedPredictionsRatio float64
	MaxDropRatio            float64
}

func (w *JoinMismatchWarning) Error() string {
	return fmt.Sprintf("join mismatch for %s: dropped %.1f%% of ground truth and %.1f%% of predictions (limit %.1f%%)",
		w.Model, w.DroppedTruthRatio*100, w.DroppedPredictionsRatio*100, w.MaxDropRatio*100)
}
