package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Quota and search errors

var (
	// ErrQuotaUnavailable indicates the usage counter could not be read.
	// Callers must fail closed (treat remaining quota as zero).
	ErrQuotaUnavailable = errors.New("quota state unavailable")

	// ErrQuotaExhausted indicates the monthly search budget is spent
	ErrQuotaExhausted = errors.New("monthly search quota exhausted")

	// ErrCacheUnavailable indicates the search cache store failed.
	// Reads fail open (treated as a cache miss); writes are non-fatal.
	ErrCacheUnavailable = errors.New("search cache unavailable")
)

// Posting errors

var (
	// ErrRateLimitExceeded indicates the provider returned a rate-limit response.
	// Expected and recoverable: drives the posting controller's wait state.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrDuplicateContent indicates the provider rejected a post as a duplicate
	ErrDuplicateContent = errors.New("duplicate content rejected")

	// ErrReplyRestricted indicates the target tweet does not allow replies
	ErrReplyRestricted = errors.New("reply restricted by author")

	// ErrConsecutiveFailures indicates the consecutive-failure ceiling was reached
	ErrConsecutiveFailures = errors.New("consecutive failure ceiling reached")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
