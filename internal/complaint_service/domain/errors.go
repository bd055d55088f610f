package domain

import (
	"errors"
	"fmt"
)

// ErrSubmissionUnconfirmed is raised when the accepted panel is absent after
// the final form step. A diagnostic snapshot is always captured first.
var ErrSubmissionUnconfirmed = errors.New("Unable to confirm submission!")

// ValidationError covers malformed or non-domestic candidate numbers. Its
// message is relayed verbatim to the sender.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewUnparsableNumberError(token string) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf("Unable to parse phone number %q.", token)}
}

func NewOutOfCountryError() *ValidationError {
	return &ValidationError{Message: "Unable to file complaints for out of country numbers."}
}

// FormRejectedError carries the inline error banner text the complaint form
// displayed before accepting a submission.
type FormRejectedError struct {
	Banner string
}

func (e *FormRejectedError) Error() string { return e.Banner }
