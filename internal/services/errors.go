package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad or missing input. The message is safe to show to the caller.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState marks an operation that is not valid for the booking's current status.
	// Nothing was written.
	ErrInvalidState = errors.New("operation not valid for current booking status")
	// ErrNotFound marks an unknown or deactivated record.
	ErrNotFound = errors.New("not found")
	// ErrCarNotFound is returned when a booking or inquiry references an unknown car.
	ErrCarNotFound = fmt.Errorf("car %w", ErrNotFound)
	// ErrCarSold blocks new interest in a car that has been sold.
	ErrCarSold = errors.New("sorry, this car has been sold")
	// ErrRateLimited is returned when a client exceeds the submission limit.
	ErrRateLimited = errors.New("too many submissions, please wait a few minutes before trying again")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
