package lounge

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy. Every fallible operation in this package returns an error
// that matches exactly one of these with errors.Is.
var (
	// ErrTransport means the request never produced a response.
	ErrTransport = errors.New("lounge: transport failure")

	// ErrInvalidFraming means a bind response stream carried a malformed
	// length header or non UTF-8 content. The stream cannot be resumed.
	ErrInvalidFraming = errors.New("lounge: invalid framing")

	// ErrDecode means a frame or event payload was not valid JSON of the
	// expected shape.
	ErrDecode = errors.New("lounge: decode failed")

	// ErrNumericParse means a string-encoded numeric field could not be parsed.
	ErrNumericParse = errors.New("lounge: numeric parse failed")

	// ErrSessionExpired means the server rejected the session (HTTP 400) or
	// the client holds no session identifiers. A full reconnect is required.
	ErrSessionExpired = errors.New("lounge: session expired")

	// ErrTokenExpired means the lounge token was rejected (HTTP 401).
	ErrTokenExpired = errors.New("lounge: token expired")

	// ErrConnectionClosed means the session is gone (HTTP 410) or the client
	// was disconnected.
	ErrConnectionClosed = errors.New("lounge: connection closed")

	// ErrInvalidResponse covers any other unexpected status or missing data.
	ErrInvalidResponse = errors.New("lounge: invalid response")
)

// StatusError records the HTTP status that produced a classified error.
type StatusError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// classifyStatus maps a non-2xx status to the session-level taxonomy shared by
// the command path and the long-poll path.
func classifyStatus(op string, status int) error {
	var kind error
	switch status {
	case http.StatusBadRequest:
		kind = ErrSessionExpired
	case http.StatusUnauthorized:
		kind = ErrTokenExpired
	case http.StatusGone:
		kind = ErrConnectionClosed
	default:
		kind = ErrInvalidResponse
	}
	return &StatusError{Op: op, StatusCode: status, Err: kind}
}

// isSuccess reports whether status is 2xx.
func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// transportError wraps a client.Do failure so it matches ErrTransport while
// keeping the underlying cause.
func transportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}
