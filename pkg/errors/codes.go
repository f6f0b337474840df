package errors

import "net/http"

type Code string

const (
	CodeUnknown      Code = "UNKNOWN"
	CodeValidation   Code = "VALIDATION"
	CodePermission   Code = "PERMISSION_DENIED"
	CodeInvalidState Code = "INVALID_STATE"
	CodeNotFound     Code = "NOT_FOUND"
	CodeTransport    Code = "TRANSPORT"
	CodeInternal     Code = "INTERNAL"
)

// HTTPStatus maps an error code to the HTTP status the REST layer responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodePermission:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState:
		return http.StatusConflict
	case CodeTransport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
