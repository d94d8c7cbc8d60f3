package monitor

import "errors"

// Domain errors for the monitor package. Precondition failures are distinct
// from agent and transport errors so the serving layer can report them as
// caller mistakes rather than device faults.
var (
	// ErrEmptyRoom is returned when a room is selected with no devices.
	ErrEmptyRoom = errors.New("monitor: room has no devices")

	// ErrNoActiveRoom is returned when a command is issued before any room
	// has been selected.
	ErrNoActiveRoom = errors.New("monitor: no active room")

	// ErrDeviceNotFound is returned when a device name is not in the
	// active room's roster.
	ErrDeviceNotFound = errors.New("monitor: device not found")

	// ErrDeviceNotConfigured is returned when a device has no usable
	// addressing information for the requested action.
	ErrDeviceNotConfigured = errors.New("monitor: device not configured")

	// ErrDemoActive is returned when a demo broadcast is started while one
	// is already running.
	ErrDemoActive = errors.New("monitor: demo already active")

	// ErrScreenshotUnavailable is returned when no address/format
	// combination produced an image.
	ErrScreenshotUnavailable = errors.New("monitor: screenshot not available")
)
