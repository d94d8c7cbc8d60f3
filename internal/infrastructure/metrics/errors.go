package metrics

import "errors"

// Domain-specific errors for metrics operations.
var (
	// ErrDisabled is returned when connecting with metrics disabled in config.
	ErrDisabled = errors.New("metrics: disabled in configuration")

	// ErrNotConnected is returned when the client is not connected.
	ErrNotConnected = errors.New("metrics: client not connected")

	// ErrConnectionFailed is returned when the initial connection fails.
	ErrConnectionFailed = errors.New("metrics: connection failed")
)
