package worker

import "errors"

// ErrJobPanicked wraps a panic recovered from a job.
var ErrJobPanicked = errors.New("job panicked")
