package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common error values for the gateway bridge
var (
	// Authentication errors
	ErrAuthenticationFailed = errors.New("Authentication failed")
	ErrNoRefreshToken       = errors.New("No refresh token available")
	ErrNoCredentials        = errors.New("no credentials provided")
	ErrNotAuthenticated     = errors.New("not authenticated")

	// Protocol errors
	ErrResponseIDMismatch = errors.New("response id does not match request id")
	ErrMalformedResponse  = errors.New("malformed JSON-RPC response")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// AuthError reports a failure to obtain or renew credentials. Message is
// surfaced verbatim so provider rejections keep their original text.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err as an AuthError carrying err's message unchanged.
func NewAuthError(err error) error {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return &AuthError{Message: err.Error(), Err: err}
}

// TransportError reports an HTTP level failure: a non-success status, a
// timeout or the network layer itself failing.
type TransportError struct {
	StatusCode int // zero when no response was received
	Message    string
	Err        error
}

func (e *TransportError) Error() string { return e.Message }

func (e *TransportError) Unwrap() error { return e.Err }

// NewStatusError builds the "HTTP <status>: <statusText>" TransportError.
func NewStatusError(statusCode int, statusText string) *TransportError {
	return &TransportError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", statusCode, statusText),
	}
}

// NewResponseError builds the status TransportError for resp, using the reason
// phrase the server sent and falling back to the standard text for the code.
func NewResponseError(resp *http.Response) *TransportError {
	statusText := http.StatusText(resp.StatusCode)
	if _, text, found := strings.Cut(resp.Status, " "); found && text != "" {
		statusText = text
	}
	return NewStatusError(resp.StatusCode, statusText)
}

// NewNetworkError wraps a failure from the transport layer. The message is the
// underlying error's message unchanged.
func NewNetworkError(err error) error {
	if err == nil {
		return nil
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &TransportError{Message: err.Error(), Err: err}
}

// ProtocolError is a JSON-RPC error object returned by the remote method.
type ProtocolError struct {
	Code    int
	Message string
	Err     error
}

func (e *ProtocolError) Error() string { return e.Message }

func (e *ProtocolError) Unwrap() error { return e.Err }

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}
