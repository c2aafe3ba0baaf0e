package store

import "errors"

var (
	// ErrValidation is returned when a profile is missing mandatory fields or has a malformed phone number.
	ErrValidation = errors.New("invalid profile")
	// ErrAlreadyExists is returned by Add when the identity key is taken. Existing records are never overwritten.
	ErrAlreadyExists = errors.New("member already exists")
	// ErrNotFound is returned by backends for unknown identity keys.
	ErrNotFound = errors.New("member not found")
)

// ValidationError carries the field-level failures reported by the validator.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Err.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
