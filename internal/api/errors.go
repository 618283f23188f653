package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for failure kinds the UI layer maps to short actionable
// messages. Wrapped errors carry the detail; match with errors.Is.
var (
	// ErrInvalidCredentials is returned when the server rejects Basic auth
	// (ReviewBoard error code 104).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidConfiguration is returned when required connection settings
	// are missing, before any network call is made.
	ErrInvalidConfiguration = errors.New("reviewboard not configured")
)

// ServerError is any non-ok response from the server other than a
// credentials failure. Message is the server's own error text.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server: %s", e.Message)
}

// ConnectivityError is a transport-level failure: DNS, refused connection,
// connect timeout, or a response body that could not be decoded.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsExpected reports whether err is one of the classified failure kinds
// (credentials, configuration, server, connectivity) rather than an
// unexpected programming or state error. Callers render expected failures
// as warnings and everything else as errors.
func IsExpected(err error) bool {
	var se *ServerError
	var ce *ConnectivityError
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidConfiguration) ||
		errors.As(err, &se) ||
		errors.As(err, &ce)
}
