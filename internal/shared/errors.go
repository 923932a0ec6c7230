package shared

import (
	"errors"
	"net/http"
)

// ErrorCode is the machine-readable kind attached to every business-rule
// failure. Clients branch on the code, humans read the message.
type ErrorCode string

const (
	CodeInvalidCredentials  ErrorCode = "InvalidCredentials"
	CodeEmailInUse          ErrorCode = "EmailInUse"
	CodeNotFound            ErrorCode = "NotFound"
	CodeInvalidAccessToken  ErrorCode = "InvalidAccessToken"
	CodeInvalidRefreshToken ErrorCode = "InvalidRefreshToken"
	CodeSessionExpired      ErrorCode = "SessionExpired"
	CodeRateLimitExceeded   ErrorCode = "RateLimitExceeded"
	CodeValidation          ErrorCode = "ValidationFailed"
	CodeUnknown             ErrorCode = "Unknown"
)

// Error is a typed application fault. The HTTP status is a presentation
// hint; the code is the contract.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError constructs a typed application error.
func NewError(code ErrorCode, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// AsError unwraps err into *Error when possible.
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// ErrInvalidCredentials is returned for unknown email and wrong password
// alike so the response never reveals which one it was.
func ErrInvalidCredentials() *Error {
	return NewError(CodeInvalidCredentials, http.StatusUnauthorized, "Invalid email or password")
}

// ErrEmailInUse signals a registration conflict.
func ErrEmailInUse() *Error {
	return NewError(CodeEmailInUse, http.StatusConflict, "Email already in use")
}

// ErrNotFound signals a missing resource.
func ErrNotFound(message string) *Error {
	return NewError(CodeNotFound, http.StatusNotFound, message)
}

// ErrUnprocessableCode signals an absent, expired or mistyped verification code.
func ErrUnprocessableCode(message string) *Error {
	return NewError(CodeNotFound, http.StatusUnprocessableEntity, message)
}

// ErrInvalidAccessToken rejects a request lacking a usable access token.
func ErrInvalidAccessToken(message string) *Error {
	return NewError(CodeInvalidAccessToken, http.StatusUnauthorized, message)
}

// ErrInvalidRefreshToken rejects an unusable refresh token.
func ErrInvalidRefreshToken(message string) *Error {
	return NewError(CodeInvalidRefreshToken, http.StatusUnauthorized, message)
}

// ErrSessionExpired rejects refresh attempts against a dead session.
func ErrSessionExpired() *Error {
	return NewError(CodeSessionExpired, http.StatusUnauthorized, "Session expired")
}

// ErrRateLimitExceeded signals too many requests in the window.
func ErrRateLimitExceeded() *Error {
	return NewError(CodeRateLimitExceeded, http.StatusTooManyRequests, "Too many requests, please try again later")
}

// ErrUnknown wraps an unanticipated internal failure into the generic catch-all fault.
func ErrUnknown(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return NewError(CodeUnknown, http.StatusInternalServerError, message)
}
