package calibration

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfidence is matched by every *InvalidConfidenceError.
	ErrInvalidConfidence = errors.New("confidence outside [0,1]")
	// ErrNoConfidences is returned when no row carries the requested field.
	ErrNoConfidences = errors.New("no confidences to calibrate")
	// ErrNilStrategy is returned when Calibrate gets no bucketing strategy.
	ErrNilStrategy = errors.New("nil bucketing strategy")
	// ErrAttributeNotEvaluated is returned when the set lacks the attribute.
	ErrAttributeNotEvaluated = errors.New("attribute not evaluated")
)

// InvalidConfidenceError reports a confidence that is NaN or outside [0,1].
// Percent-scaled scores must be rescaled by the caller before calibration.
type InvalidConfidenceError struct {
	SubjectID int64
	Field     string
	Value     float64
}

func (e *InvalidConfidenceError) Error() string {
	return fmt.Sprintf("subject %d: %s confidence %g is outside [0,1]", e.SubjectID, e.Field, e.Value)
}

func (e *InvalidConfidenceError) Unwrap() error { return ErrInvalidConfidence }
