package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrNoReport      = errors.New("no evaluation report available")
	ErrModelNotFound = errors.New("model not found")
)
