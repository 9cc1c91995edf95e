package domain

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError means the upstream rejected our credentials or signature.
// It is fatal for that source for the current pass.
type AuthError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: authentication failed (status %d): %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError covers transport failures, timeouts and unexpected statuses
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means a response was present but did not have a usable shape
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FxUnavailableError is returned once every provider failed for a pair
type FxUnavailableError struct {
	Base     string
	Quote    string
	Attempts []error
}

func (e *FxUnavailableError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("no rate available for %s/%s after %d providers: %s",
		e.Base, e.Quote, len(e.Attempts), strings.Join(msgs, "; "))
}

// ErrNotFound is the sentinel for an expected field that is absent
var ErrNotFound = errors.New("not found")

// IsAuth reports whether err is or wraps an *AuthError
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNetwork reports whether err is or wraps a *NetworkError
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsFxUnavailable reports whether err is or wraps an *FxUnavailableError
func IsFxUnavailable(err error) bool {
	var fxErr *FxUnavailableError
	return errors.As(err, &fxErr)
}
