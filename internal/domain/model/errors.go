package model

import "errors"

// Sentinel error kinds for record and evaluation-set invariants.
var (
	ErrDuplicateSubject = errors.New("duplicate subject id")
	ErrMissingValue     = errors.New("missing attribute value")
	ErrInvalidSubjectID = errors.New("invalid subject id")
)
