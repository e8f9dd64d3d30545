package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Generic errors
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Identity provider metadata errors
	ErrCodeMetadataFetch               ErrorCode = "METADATA_FETCH_FAILED"
	ErrCodeSigningKeysFetch            ErrorCode = "SIGNING_KEYS_FETCH_FAILED"
	ErrCodeAuthorizationURLUnavailable ErrorCode = "AUTHORIZATION_URL_UNAVAILABLE"

	// ID token errors
	ErrCodeTokenDecode          ErrorCode = "TOKEN_DECODE_ERROR"
	ErrCodeTokenExpired         ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenNotYetValid     ErrorCode = "TOKEN_NOT_YET_VALID"
	ErrCodeTokenIssuedInFuture  ErrorCode = "TOKEN_ISSUED_IN_FUTURE"
	ErrCodeInvalidIssuer        ErrorCode = "INVALID_ISSUER"
	ErrCodeInvalidAudience      ErrorCode = "INVALID_AUDIENCE"
	ErrCodeInvalidNonce         ErrorCode = "INVALID_NONCE"
	ErrCodeMissingRequiredClaim ErrorCode = "MISSING_REQUIRED_CLAIM"

	// Callback errors
	ErrCodeInvalidState         ErrorCode = "INVALID_STATE"
	ErrCodeAuthenticationDenied ErrorCode = "AUTHENTICATION_DENIED"
	ErrCodeRefererInvalid       ErrorCode = "REFERER_INVALID"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code.
// Only the outermost structured Error in the chain is consulted.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetDetails extracts the details from an error
// Returns nil if the error is not a structured Error
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// From returns err as a structured Error, wrapping it as an internal error
// when it is not one already.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrCodeInternal, "internal error")
}

// MissingRequiredClaim creates the error reported when a verified token lacks a claim
func MissingRequiredClaim(claim string) *Error {
	return Newf(ErrCodeMissingRequiredClaim, "required claim %s was not found", claim).WithDetail("claim", claim)
}

// InvalidNonce creates an invalid nonce error carrying the diagnostic reason
func InvalidNonce(reason string) *Error {
	return New(ErrCodeInvalidNonce, "invalid token nonce").WithDetail("reason", reason)
}

// TokenDecode creates a token decode error
func TokenDecode(reason string, err error) *Error {
	if err == nil {
		return Newf(ErrCodeTokenDecode, "invalid id token: %s", reason)
	}
	return Wrap(err, ErrCodeTokenDecode, "invalid id token: "+reason)
}

// InternalWrap wraps an internal error
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}
