package agent

import (
	"errors"
	"fmt"
)

// Agent error codes as reported in the JSON error body of a rejected request.
// The numbering is part of the agent's wire contract.
const (
	CodeConnectionLimitReached = 0
	CodeInvalidData            = 1
	CodeInvalidSession         = 2
	CodeAuthMethodNotAvailable = 3
	CodeAuthenticationFailed   = 4
	CodeInvalidFeature         = 5
	CodeFeatureNotAvailable    = 6
	CodeUnsupportedImageFormat = 7
	CodeInvalidKeyName         = 8
	CodeConnectionTimedOut     = 9
)

// Sentinel errors for the agent package.
var (
	// ErrEmptyHost is returned when an operation is called with an empty host.
	ErrEmptyHost = errors.New("agent: empty host")
)

// ConnectionError indicates a transport-level failure: the host was
// unreachable, the connection timed out, or the response could not be read.
// Connection errors are retryable; pollers degrade the device to
// disconnected instead of propagating them.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("agent: connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AgentError indicates the agent received a well-formed request and rejected
// it. Code identifies the rejection reason; only CodeInvalidSession is
// retryable (after invalidating the cached session).
type AgentError struct {
	Host    string
	Code    int
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent: %s rejected request (code %d): %s", e.Host, e.Code, e.Message)
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// AgentCode extracts the agent error code from err.
// Returns -1 if err is not an AgentError.
func AgentCode(err error) int {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return -1
}
