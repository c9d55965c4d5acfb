package harmonize

import (
	"errors"
	"fmt"

	"github.com/okian/faceval/internal/domain/taxonomy"
)

var (
	// ErrUnknownLabel is matched by every *UnknownLabelError.
	ErrUnknownLabel = errors.New("unknown raw label")
	// ErrNegativeAge is returned by BinAge for ages below zero.
	ErrNegativeAge = errors.New("negative age")
	// ErrDuplicateTable is returned when two tables cover the same attribute.
	ErrDuplicateTable = errors.New("duplicate harmonization table")
	// ErrCanonicalRemapped is returned when a table sends a canonical label
	// somewhere other than itself.
	ErrCanonicalRemapped = errors.New("canonical label remapped")
)

// UnknownLabelError reports a raw value with no entry in the harmonization table.
type UnknownLabelError struct {
	Attribute taxonomy.Attribute
	Raw       string
	Version   string
}

func (e *UnknownLabelError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("empty %s label (table %s)", e.Attribute, e.Version)
	}
	return fmt.Sprintf("unknown %s label %q (table %s)", e.Attribute, e.Raw, e.Version)
}

func (e *UnknownLabelError) Unwrap() error { return ErrUnknownLabel }
