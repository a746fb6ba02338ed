package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidArgument = NewError("INVALID_ARGUMENT", "invalid argument", http.StatusBadRequest)
	ErrNotFound        = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrConflict        = NewError("CONFLICT", "resource already registered", http.StatusConflict)
	ErrFormat          = NewError("FORMAT_ERROR", "message formatting failed", http.StatusUnprocessableEntity)
	ErrSinkFailure     = NewError("SINK_FAILURE", "sink failed", http.StatusBadGateway)
	ErrAssertion       = NewError("ASSERTION_FAILED", "assertion failed", http.StatusInternalServerError)
	ErrInternal        = NewError("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
	ErrUnavailable     = NewError("SERVICE_UNAVAILABLE", "service unavailable", http.StatusServiceUnavailable)
)

type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on the error code so sentinels compare equal to their derived copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := e.clone()
	err.Cause = cause
	return err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := e.clone()
	err.Details[key] = value
	return err
}

// WithMessage overrides the human readable message while keeping the code.
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	return e.WithDetail("message", fmt.Sprintf(format, args...))
}

func (e *Error) clone() *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrInvalidArgument.Code)
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound.Code)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrConflict.Code)
}

func IsFormat(err error) bool {
	return hasCode(err, ErrFormat.Code)
}

func IsAssertion(err error) bool {
	return hasCode(err, ErrAssertion.Code)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	msg := appErr.Message
	if detailMsg, ok := appErr.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	response := map[string]interface{}{
		"error":      msg,
		"error_code": appErr.Code,
	}

	details := make(map[string]interface{})
	for k, v := range appErr.Details {
		if k == "message" || k == "stack_trace" {
			continue
		}
		details[k] = v
	}
	if len(details) > 0 {
		response["details"] = details
	}

	return response
}
