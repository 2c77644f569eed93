package service

import "errors"

var (
	// ErrJobNotFound indicates no job with the given id exists.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFinished indicates the job already completed or failed and can
	// no longer be terminated.
	ErrJobFinished = errors.New("job already finished")
)
