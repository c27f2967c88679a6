package dispatch

import "errors"

var (
	// ErrJobRejected wraps every reason a job request is not admitted.
	ErrJobRejected = errors.New("job rejected")
	// ErrNoFlow means no production flow is defined for the workpiece type.
	ErrNoFlow = errors.New("no production flow defined")
	// ErrUnknownJob is returned for operations on jobs the engine does not hold.
	ErrUnknownJob = errors.New("unknown job")
	// ErrInvalidRequest is returned for malformed job requests.
	ErrInvalidRequest = errors.New("invalid job request")
)
