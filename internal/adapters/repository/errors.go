package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	// ErrMalformedRow is returned for rows that cannot be decoded.
	ErrMalformedRow = errors.New("malformed row")
	// ErrMissingColumn is returned when a required header column is absent.
	ErrMissingColumn = errors.New("missing column")
)
