package scoring

import "errors"

var (
	// ErrEmptySet is returned when there is nothing to score.
	ErrEmptySet = errors.New("empty evaluation set")
	// ErrNotOrdinal is returned by NewOrdinal for unordered taxonomies.
	ErrNotOrdinal = errors.New("taxonomy is not ordinal")
	// ErrNegativeK is returned by WithinK for k < 0.
	ErrNegativeK = errors.New("k must not be negative")
	// ErrAttributeNotEvaluated is returned when the set lacks the taxonomy's attribute.
	ErrAttributeNotEvaluated = errors.New("attribute not evaluated")
)
