// Package apperr defines the status-classified errors that auth
// operations return. Every domain failure carries the HTTP status it
// maps to at the boundary; anything else is treated as an internal
// error and never leaks detail to the client.
package apperr

import (
	"fmt"
	"net/http"
)

type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Validation reports malformed or missing input.
func Validation(message string) *Error {
	return newError(http.StatusBadRequest, message)
}

// InvalidCredentials is returned for both unknown email and wrong
// password, with one uniform message.
func InvalidCredentials() *Error {
	return newError(http.StatusUnauthorized, "incorrect email or password")
}

// LockedAccount reports a temporarily locked-out account.
func LockedAccount() *Error {
	return newError(http.StatusForbidden, "account temporarily locked, try again later")
}

// Unauthorized reports a missing, invalid, or stale credential.
func Unauthorized(message string) *Error {
	return newError(http.StatusUnauthorized, message)
}

// Forbidden reports a role mismatch.
func Forbidden(message string) *Error {
	return newError(http.StatusForbidden, message)
}

// NotFound reports a missing record or an unredeemable reset token.
func NotFound(message string) *Error {
	return newError(http.StatusNotFound, message)
}

// Delivery reports a failure handing mail to the outbound transport.
func Delivery(err error) *Error {
	return &Error{Code: http.StatusBadGateway, Message: "could not deliver email", Err: err}
}
