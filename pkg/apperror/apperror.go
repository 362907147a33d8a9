// Package apperror defines the typed errors handlers and guards return. Each error
// carries the HTTP status it maps to, a stable machine code and a client-safe message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes. Clients branch on these rather than on messages.
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation_failed"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeModuleNotEnabled = "module_not_enabled"
	CodeAccountDisabled  = "account_disabled"
	CodeAccountLocked    = "account_locked"
	CodeNotFound         = "not_found"
	CodePaymentRequired  = "payment_required"
	CodeConflict         = "conflict"
	CodeTenantRequired   = "tenant_required"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal_error"
)

// Error is a typed application error.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on status and code so callers can compare against sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Code == t.Code
}

// Wrap attaches an underlying cause that is logged but never sent to clients.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// New builds an error with an explicit status and code.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

func Validation(message string) *Error {
	return New(http.StatusBadRequest, CodeValidation, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

// ModuleNotEnabled is a Forbidden variant the console renders as an upgrade prompt.
func ModuleNotEnabled(module string) *Error {
	return New(http.StatusForbidden, CodeModuleNotEnabled, fmt.Sprintf("module %q is not enabled for this restaurant", module))
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, CodeNotFound, message)
}

func PaymentRequired(message string) *Error {
	return New(http.StatusPaymentRequired, CodePaymentRequired, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

func Locked(message string) *Error {
	return New(http.StatusLocked, CodeAccountLocked, message)
}

func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, CodeRateLimited, message)
}

func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error", Err: err}
}

// From returns the typed error in err's chain, or nil.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// StatusOf returns the HTTP status for err, 500 for untyped errors.
func StatusOf(err error) int {
	if appErr := From(err); appErr != nil {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the error code for err, CodeInternal for untyped errors.
func CodeOf(err error) string {
	if appErr := From(err); appErr != nil {
		return appErr.Code
	}
	return CodeInternal
}
