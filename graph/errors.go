package graph

import (
	"errors"
	"fmt"
)

// AuthenticationError indicates the client-credential grant against the
// identity provider did not yield a usable access token.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %v", e.Err)
	}
	return "authentication failed: identity provider returned no access token"
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ServiceError is any non-success outcome of a directory service call.
// StatusCode and Body carry the upstream response verbatim; they are
// re-surfaced to the caller, not translated.
type ServiceError struct {
	Operation  string
	StatusCode int
	Body       string
	Timeout    bool
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s timed out: %v", e.Operation, e.Err)
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// AsServiceError unwraps err to a *ServiceError if one is in its chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsTimeout reports whether err is a directory call that hit its deadline.
func IsTimeout(err error) bool {
	se, ok := AsServiceError(err)
	return ok && se.Timeout
}
