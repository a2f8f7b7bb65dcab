package leads

import (
	"errors"
	"fmt"
)

// ErrLeadNotFound is returned when a lead is not found
var ErrLeadNotFound = errors.New("lead not found")

// ValidationError reports a missing or malformed client-supplied field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StorageError wraps a backend failure (I/O, connection, driver) so callers
// never see raw driver errors.
type StorageError struct {
	Op      string
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("leads: %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(backend, op string, err error) error {
	return &StorageError{Op: op, Backend: backend, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) ErrLeadNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
