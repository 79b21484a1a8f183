package service

import (
	"errors"
	"fmt"

	"quorum/internal/membership/validator"
	dErrors "quorum/pkg/domain-errors"
)

// ValidationFailureError carries the typed reason a transition guard
// rejected a command with. Guard rejections are business outcomes, never
// retried automatically; transports surface the reason verbatim.
type ValidationFailureError struct {
	Reason validator.Reason
	Detail string
}

func (e *ValidationFailureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func validationFailure(result validator.Result) error {
	return dErrors.Wrap(&ValidationFailureError{Reason: result.Reason, Detail: result.Detail},
		dErrors.CodeValidation, "transition rejected")
}

// AsValidationFailure extracts the typed guard rejection if err carries one.
func AsValidationFailure(err error) (*ValidationFailureError, bool) {
	var vf *ValidationFailureError
	ok := errors.As(err, &vf)
	return vf, ok
}
