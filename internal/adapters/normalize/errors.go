package normalize

import "errors"

var (
	// ErrMalformedRecord is returned for JSONL lines that cannot be decoded.
	ErrMalformedRecord = errors.New("malformed inference record")
	// ErrUnknownFormat is returned by ForFormat for unsupported names.
	ErrUnknownFormat = errors.New("unknown inference format")
)
