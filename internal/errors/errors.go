package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors used to mark failures. Callers check them with errors.Is
// and the HTTP layer maps them to status codes.
var (
	ErrValidation        = new(ErrCodeValidation, "validation error")
	ErrAuthentication    = new(ErrCodeAuthentication, "authentication required")
	ErrPermissionDenied  = new(ErrCodePermissionDenied, "permission denied")
	ErrSecurityToken     = new(ErrCodeSecurityToken, "security token rejected")
	ErrInvalidTransition = new(ErrCodeInvalidTransition, "invalid status transition")
	ErrVersionConflict   = new(ErrCodeVersionConflict, "version conflict")
	ErrNotFound          = new(ErrCodeNotFound, "resource not found")
	ErrPersistence       = new(ErrCodePersistence, "persistence error")
	ErrSystem            = new(ErrCodeSystemError, "system error")

	// ordered so the most specific classification wins when an error carries several marks
	statusCodes = []struct {
		err    error
		status int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrAuthentication, http.StatusUnauthorized},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrSecurityToken, http.StatusTooManyRequests},
		{ErrInvalidTransition, http.StatusConflict},
		{ErrVersionConflict, http.StatusConflict},
		{ErrNotFound, http.StatusNotFound},
		{ErrPersistence, http.StatusInternalServerError},
		{ErrSystem, http.StatusInternalServerError},
	}
)

const (
	ErrCodeValidation        = "validation_error"
	ErrCodeAuthentication    = "authentication_error"
	ErrCodePermissionDenied  = "permission_denied"
	ErrCodeSecurityToken     = "security_token_error"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeVersionConflict   = "version_conflict"
	ErrCodeNotFound          = "not_found"
	ErrCodePersistence       = "persistence_error"
	ErrCodeSystemError       = "system_error"
)

// InternalError is a classified domain error.
type InternalError struct {
	Code    string
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is matches on the error code so wrapped copies compare equal to the sentinels.
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsSecurityToken(err error) bool {
	return errors.Is(err, ErrSecurityToken)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// HTTPStatusFromErr maps a marked error to its HTTP status. Unclassified
// errors are reported as 500.
func HTTPStatusFromErr(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.status
		}
	}
	return http.StatusInternalServerError
}

// CodeFromErr returns the machine-readable code of the first matching sentinel.
func CodeFromErr(err error) string {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.err.(*InternalError).Code
		}
	}
	return ErrCodeSystemError
}
