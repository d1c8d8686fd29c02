package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("invalid request")
	ErrUpstream          = errors.New("upstream model failure")
	ErrNoPayload         = errors.New("no image payload in model response")
	ErrSourceFetch       = errors.New("source artifact fetch failed")
	ErrStorage           = errors.New("artifact storage failure")
	ErrRecordStore       = errors.New("job record store failure")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateID       = errors.New("duplicate job id")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ValidationError describes a user-correctable problem with a request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Wrap tags cause with the sentinel condition so callers can match either.
func Wrap(condition, cause error) error {
	if cause == nil {
		return condition
	}
	return fmt.Errorf("%w: %w", condition, cause)
}
