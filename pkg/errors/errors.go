package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrSourceUnavailable   = errors.New("obligation source unavailable")
	ErrConflict            = errors.New("concurrent modification")
	ErrDetectionInProgress = errors.New("detection already running")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Field   string
	Details map[string]string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeSourceUnavailable   = "SOURCE_UNAVAILABLE"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeDetectionInProgress = "DETECTION_IN_PROGRESS"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeCacheError          = "CACHE_ERROR"
	ErrCodeNotifierError       = "NOTIFIER_ERROR"
)

// WrapValidation reports a malformed input naming the failing field
func WrapValidation(field, message string) *BusinessError {
	e := NewBusinessError(ErrCodeValidation, message, ErrValidation)
	e.Field = field
	return e
}

// WrapValidationFields reports several failing fields at once
func WrapValidationFields(fields map[string]string) *BusinessError {
	e := NewBusinessError(ErrCodeValidation, "request validation failed", ErrValidation)
	e.Details = fields
	for field := range fields {
		if e.Field == "" || field < e.Field {
			e.Field = field
		}
	}
	return e
}

func WrapNotFound(resource, id string) *BusinessError {
	e := NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("%s with ID %s not found", resource, id),
		ErrNotFound,
	)
	e.Details = map[string]string{"resource": resource, "id": id}
	return e
}

func WrapInvalidTransition(from, to string) *BusinessError {
	e := NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("cannot move case from %s to %s", from, to),
		ErrInvalidTransition,
	)
	e.Details = map[string]string{"current_status": from, "requested_status": to}
	return e
}

func WrapSourceUnavailable(source string, err error) *BusinessError {
	e := NewBusinessError(
		ErrCodeSourceUnavailable,
		fmt.Sprintf("obligation source %s could not be queried", source),
		errors.Join(ErrSourceUnavailable, err),
	)
	e.Details = map[string]string{"source": source}
	return e
}

func WrapConflict(message string) *BusinessError {
	return NewBusinessError(ErrCodeConflict, message, ErrConflict)
}

func WrapDetectionInProgress(clinicID string) *BusinessError {
	return NewBusinessError(
		ErrCodeDetectionInProgress,
		fmt.Sprintf("detection for clinic %s is already running", clinicID),
		ErrDetectionInProgress,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

func WrapNotifierError(channel string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeNotifierError,
		fmt.Sprintf("notice delivery through %s failed", channel),
		err,
	)
}

// HTTPStatus maps an error to the status code the API answers with
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict), errors.Is(err, ErrDetectionInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// As extracts the BusinessError carried by err, if any
func As(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
