// Package domainerrors carries the error taxonomy shared by services and
// transports. Services return *Error values (optionally wrapping an
// infrastructure cause) and transports translate the Code into a response.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error. Values are stable and appear on the wire.
type Code string

const (
	CodeBadRequest              Code = "bad_request"
	CodeInvalidInput            Code = "invalid_input"
	CodeNotFound                Code = "not_found"
	CodeConflict                Code = "conflict"
	CodeTimeout                 Code = "timeout"
	CodeInternal                Code = "internal_error"
	CodePlatformUnavailable     Code = "platform_unavailable"
	CodePermissionDenied        Code = "permission_denied"
	CodeMalformedActivationCode Code = "malformed_activation_code"
	CodeInvalidProfile          Code = "invalid_profile"
	CodeOperationInProgress     Code = "operation_in_progress"
	CodeResolutionDenied        Code = "resolution_denied"
	CodeResolutionUnsupported   Code = "resolution_unsupported"
	CodePlatformError           Code = "platform_error"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the code of the outermost domain error, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// Is is errors.Is, re-exported so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// ToHTTPStatus maps a code to the HTTP status the transport should return.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeMalformedActivationCode, CodeInvalidProfile:
		return http.StatusBadRequest
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeOperationInProgress:
		return http.StatusConflict
	case CodePlatformUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
