package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents different categories of errors
type ErrorKind string

const (
	ErrorKindInvalidArgument    ErrorKind = "invalid_argument"
	ErrorKindUnauthorized       ErrorKind = "unauthorized"
	ErrorKindAccessDenied       ErrorKind = "access_denied"
	ErrorKindNotFound           ErrorKind = "not_found"
	ErrorKindConflict           ErrorKind = "conflict"
	ErrorKindAlreadyRevoked     ErrorKind = "already_revoked"
	ErrorKindStorageUnavailable ErrorKind = "storage_unavailable"
	ErrorKindAnchorUnavailable  ErrorKind = "anchor_unavailable"
	ErrorKindCryptoFailure      ErrorKind = "crypto_failure"
	ErrorKindInternal           ErrorKind = "internal"
)

// Error represents a structured error in the record vault
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(code, message string) *Error {
	return &Error{Kind: ErrorKindInvalidArgument, Code: code, Message: message}
}

// NewUnauthorizedError creates a new authentication error
func NewUnauthorizedError(code, message string) *Error {
	return &Error{Kind: ErrorKindUnauthorized, Code: code, Message: message}
}

// NewAccessDeniedError creates a new authorization error
func NewAccessDeniedError(code, message string) *Error {
	return &Error{Kind: ErrorKindAccessDenied, Code: code, Message: message}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *Error {
	return &Error{Kind: ErrorKindNotFound, Code: code, Message: message}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *Error {
	return &Error{Kind: ErrorKindConflict, Code: code, Message: message}
}

// NewAlreadyRevokedError creates a new already revoked error
func NewAlreadyRevokedError(code, message string) *Error {
	return &Error{Kind: ErrorKindAlreadyRevoked, Code: code, Message: message}
}

// NewStorageUnavailableError creates a new storage unavailable error
func NewStorageUnavailableError(code, message string, cause error) *Error {
	return &Error{Kind: ErrorKindStorageUnavailable, Code: code, Message: message, Cause: cause}
}

// NewAnchorUnavailableError creates a new anchor unavailable error
func NewAnchorUnavailableError(code, message string, cause error) *Error {
	return &Error{Kind: ErrorKindAnchorUnavailable, Code: code, Message: message, Cause: cause}
}

// NewCryptoFailureError creates a new crypto failure error
func NewCryptoFailureError(code, message string, cause error) *Error {
	return &Error{Kind: ErrorKindCryptoFailure, Code: code, Message: message, Cause: cause}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *Error {
	return &Error{Kind: ErrorKindInternal, Code: code, Message: message, Cause: cause}
}

// KindOf extracts the error kind from any error in the chain.
// Unstructured errors are reported as internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindInternal
}

// HTTPStatus maps an error kind to an HTTP status code
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case ErrorKindInvalidArgument:
		return http.StatusBadRequest
	case ErrorKindUnauthorized:
		return http.StatusUnauthorized
	case ErrorKindAccessDenied:
		return http.StatusForbidden
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindConflict, ErrorKindAlreadyRevoked:
		return http.StatusConflict
	case ErrorKindStorageUnavailable, ErrorKindAnchorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeReportInaccessible = "REPORT_NOT_ACCESSIBLE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeDuplicateGrant     = "DUPLICATE_ACTIVE_GRANT"
	ErrCodeDuplicateHash      = "DUPLICATE_CONTENT_HASH"
	ErrCodeAlreadyRevoked     = "GRANT_ALREADY_REVOKED"
	ErrCodeStorageFailure     = "STORAGE_UNAVAILABLE"
	ErrCodeAnchorFailure      = "ANCHOR_UNAVAILABLE"
	ErrCodeDecryptionFailed   = "DECRYPTION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)
