package directory

import "errors"

// Domain errors for the directory package.
var (
	// ErrRoomNotFound is returned when no room matches the given name.
	ErrRoomNotFound = errors.New("directory: room not found")

	// ErrDeviceNotFound is returned when no device matches the given name.
	ErrDeviceNotFound = errors.New("directory: device not found")

	// ErrRoomExists is returned when creating a room whose DN already exists.
	ErrRoomExists = errors.New("directory: room already exists")

	// ErrDeviceExists is returned when creating a device whose name already
	// exists.
	ErrDeviceExists = errors.New("directory: device already exists")
)
