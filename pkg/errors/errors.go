package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError carries a taxonomy code alongside the underlying cause. Services
// return AppError values; the REST layer maps the code to an HTTP status.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error {
	return New(CodeValidation, msg)
}

func Permission(msg string) error {
	return New(CodePermission, msg)
}

func InvalidState(msg string) error {
	return New(CodeInvalidState, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Transport(msg string, cause error) error {
	return Wrap(CodeTransport, msg, cause)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// CodeOf extracts the taxonomy code from err, or CodeUnknown if err does not
// wrap an AppError.
func CodeOf(err error) Code {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
