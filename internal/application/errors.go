package application

import (
	"errors"
	"fmt"
)

// ErrValidation marks malformed or missing input; boundaries map it to 400.
var ErrValidation = errors.New("validation")

// Validation wraps a message with the validation sentinel.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// ErrRepository wraps unexpected storage failures so boundaries can return a
// generic message while the detail stays in the logs.
var ErrRepository = errors.New("repository failure")
