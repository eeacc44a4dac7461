package membership

import "errors"

var (
	ErrMemberNotFound = errors.New("member not found")
	// ErrStatusConflict means a concurrent writer changed the status first. Retryable.
	ErrStatusConflict = errors.New("member status changed concurrently")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("member already registered")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError reports which unique field collided. Field is empty when the
// store could not tell.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	switch e.Field {
	case "email":
		return "email already registered"
	case "phone":
		return "phone already registered"
	default:
		return ErrConflict.Error()
	}
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
