package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions of the device client.
// They are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("wateringctl: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("wateringctl: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("wateringctl: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("wateringctl: invalid configuration")

	// ErrOperationInFlight is returned when a command is issued while the
	// previous one has not consumed its terminal frame yet. Frames carry no
	// correlation id, so a second command would orphan the first.
	ErrOperationInFlight = errors.New("wateringctl: another operation is in flight")

	// ErrTimeout is returned when the client-side guard of an operation
	// expires. The device is never told about it.
	ErrTimeout = errors.New("wateringctl: operation timed out")

	// ErrMalformedPayload is returned when a response cannot be decoded.
	ErrMalformedPayload = errors.New("wateringctl: malformed payload")

	// ErrLengthOverrun is returned when a download delivers more bytes than
	// its header announced.
	ErrLengthOverrun = errors.New("wateringctl: received more bytes than announced")

	// ErrChannelClosed is returned by operations on a disposed channel.
	ErrChannelClosed = errors.New("wateringctl: channel closed")
)

// StatusError is a protocol status error: the device answered with a status
// other than the one the operation expects.
type StatusError struct {
	// Op is the verb of the failed command (FETCH, WRITE, ...)
	Op Verb

	// Code is the status code the device answered with
	Code Status
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("wateringctl: %s failed: %s", e.Op, e.Code)
}

// StatusCode extracts the device status code from err, if any.
func StatusCode(err error) (Status, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}

// APIError is an error response of the device's REST API:
// {"error":true,"code":"...","message":"..."}.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wateringctl: device returned %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("wateringctl: device returned %d: %s (%s)", e.Status, e.Code, e.Message)
}
