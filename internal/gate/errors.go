package gate

import "errors"

// Domain errors for the gate package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, gate.ErrInvalidTransition) {
//	    // handle rejected edge
//	}
var (
	// ErrInvalidTransition is returned when a requested position change
	// does not match a legal edge of the state machine. The machine
	// state is left unchanged.
	ErrInvalidTransition = errors.New("gate: invalid transition")

	// ErrInvalidPosition is returned when a position value is not recognised.
	ErrInvalidPosition = errors.New("gate: invalid position")
)
