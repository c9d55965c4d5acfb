package taxonomy

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrUnknownAttribute   = errors.New("unknown attribute")
	ErrEmptyTaxonomy      = errors.New("taxonomy has no labels")
	ErrDuplicateLabel     = errors.New("duplicate taxonomy label")
	ErrLabelOutOfTaxonomy = errors.New("label out of taxonomy")
)

// LabelOutOfTaxonomyError reports a canonical label that has no index in the
// attribute's taxonomy. It always indicates a harmonization bug upstream.
type LabelOutOfTaxonomyError struct {
	Attribute Attribute
	Label     string
}

func (e *LabelOutOfTaxonomyError) Error() string {
	return fmt.Sprintf("label %q is not in the %s taxonomy", e.Label, e.Attribute)
}

// Unwrap lets errors.Is match ErrLabelOutOfTaxonomy.
func (e *LabelOutOfTaxonomyError) Unwrap() error { return ErrLabelOutOfTaxonomy }
