// Package fop defines the failure taxonomy for authentication operations and
// its deterministic mapping onto HTTP responses.
//
// Every credential- or storage-level failure inside the core is converted to
// one of these errors before it reaches the boundary; nothing else may escape
// except a genuine internal fault, which travels as Other.
package fop

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTokenInvalid covers bad signatures, expiry, revocation, and tokens
	// whose user no longer exists. Callers must not be able to tell these
	// apart through this error.
	ErrTokenInvalid = errors.New("token is invalid")

	ErrPasswordMismatch = errors.New("password mismatch")
	ErrUserNotFound     = errors.New("user not found")
	ErrUserNameNotValid = errors.New("username is not valid")
	ErrEmailNotValid    = errors.New("email is not valid")
	ErrTooManyRequests  = errors.New("too many requests")

	// ErrUserTooBig signals the store capacity cap was exceeded. A defensive
	// limit, not a normal-path error.
	ErrUserTooBig = errors.New("user store capacity exceeded")
)

// OtherError carries an internal or upstream fault with a stable, safe reason
// code. The wrapped error is for logs only and is never serialized to a
// client.
type OtherError struct {
	Reason string
	Err    error
}

func (e *OtherError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *OtherError) Unwrap() error { return e.Err }

// Other wraps err under a stable reason code.
func Other(reason string, err error) error {
	return &OtherError{Reason: reason, Err: err}
}

// Reason codes used for Other errors raised by the proxy layer.
const (
	ReasonUpstreamUnreachable = "upstream_unreachable"
	ReasonUpstreamMalformed   = "upstream_malformed"
	ReasonUpstreamDenied      = "upstream_denied"
	ReasonInternal            = "server_error"
)

// Class is the stable (category, reason, status) triple a failure maps to at
// the HTTP boundary.
type Class struct {
	Category string
	Reason   string
	Status   int
}

// Classify maps an error onto its boundary representation. Login-path
// failures that would reveal account existence share the invalid_credentials
// class. Unknown errors classify as internal faults.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrPasswordMismatch), errors.Is(err, ErrUserNotFound):
		return Class{"unauthorized", "invalid_credentials", http.StatusUnauthorized}
	case errors.Is(err, ErrTokenInvalid):
		return Class{"unauthorized", "token_invalid", http.StatusUnauthorized}
	case errors.Is(err, ErrTooManyRequests):
		return Class{"too_many_requests", "rate_limited", http.StatusTooManyRequests}
	case errors.Is(err, ErrUserNameNotValid):
		return Class{"bad_request", "username_invalid", http.StatusBadRequest}
	case errors.Is(err, ErrEmailNotValid):
		return Class{"bad_request", "email_invalid", http.StatusBadRequest}
	case errors.Is(err, ErrUserTooBig):
		return Class{"bad_request", "capacity_exceeded", http.StatusBadRequest}
	}

	var other *OtherError
	if errors.As(err, &other) {
		switch other.Reason {
		case ReasonUpstreamUnreachable, ReasonUpstreamMalformed:
			return Class{"bad_gateway", other.Reason, http.StatusBadGateway}
		case ReasonUpstreamDenied:
			return Class{"unauthorized", other.Reason, http.StatusUnauthorized}
		default:
			return Class{"internal", other.Reason, http.StatusInternalServerError}
		}
	}

	return Class{"internal", ReasonInternal, http.StatusInternalServerError}
}

// Message returns the user-facing message for an error. Raw transport or
// storage detail never leaks through here, and the two credential failures
// share one message so the response cannot reveal whether the account
// exists.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPasswordMismatch), errors.Is(err, ErrUserNotFound):
		return "invalid credentials"
	}
	for _, sentinel := range []error{
		ErrTokenInvalid, ErrUserNameNotValid, ErrEmailNotValid,
		ErrTooManyRequests, ErrUserTooBig,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	var other *OtherError
	if errors.As(err, &other) {
		switch other.Reason {
		case ReasonUpstreamUnreachable:
			return "authentication server unreachable"
		case ReasonUpstreamMalformed:
			return "authentication server returned an invalid response"
		case ReasonUpstreamDenied:
			return "authentication server rejected the request"
		}
	}
	return "internal error"
}
