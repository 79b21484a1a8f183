package models

import (
	"errors"
	"fmt"

	dErrors "quorum/pkg/domain-errors"
)

// InvalidTransitionError reports an attempted move along a missing edge.
// It is wrapped in a CodeInvariantViolation domain error so transports map
// it uniformly, while callers that care about the pair use errors.As.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// TerminatedError reports a command against an aggregate in an absorbing
// state (terminated or rejected). Every field of such an aggregate is frozen.
type TerminatedError struct {
	State State
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("membership is %s and accepts no further commands", e.State)
}

func invalidTransition(from, to State) error {
	return dErrors.Wrap(&InvalidTransitionError{From: from, To: to},
		dErrors.CodeInvariantViolation, "illegal state change")
}

func terminated(state State) error {
	return dErrors.Wrap(&TerminatedError{State: state},
		dErrors.CodeInvariantViolation, "membership lifecycle has ended")
}

// IsTerminatedErr reports whether err stems from a command against an
// aggregate in an absorbing state.
func IsTerminatedErr(err error) bool {
	var te *TerminatedError
	return errors.As(err, &te)
}

// AsInvalidTransition extracts the attempted (from, to) pair if err is an
// invalid-transition failure.
func AsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	ok := errors.As(err, &ite)
	return ite, ok
}
