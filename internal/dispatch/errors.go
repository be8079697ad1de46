package dispatch

import "errors"

// Domain errors for the dispatch package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, dispatch.ErrGateBusy) {
//	    // expected contention, not a defect
//	}
var (
	// ErrGateBusy is returned when a sequence command arrives while the
	// operation slot is held. This is expected contention: control
	// channel callers surface it to the operator, automated callers
	// have it absorbed at the dispatcher boundary.
	ErrGateBusy = errors.New("dispatch: gate busy")

	// ErrInvalidParameter is returned when a request carries a bad
	// parameter, such as a non-positive open duration.
	ErrInvalidParameter = errors.New("dispatch: invalid parameter")

	// ErrUnknownCommand is returned for commands outside the recognised
	// vocabulary.
	ErrUnknownCommand = errors.New("dispatch: unknown command")
)
