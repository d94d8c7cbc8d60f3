package directory

import "time"

// Room is a classroom known to the directory.
type Room struct {
	// DN is the backing directory entry, unique per room.
	DN string `json:"dn"`

	// Name is the human-facing room name used by the serving layer.
	Name string `json:"name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Device is a roster entry for one classroom machine.
type Device struct {
	// Name is the device's host name, unique across the directory.
	Name string `json:"name"`

	// RoomDN links the device to its room.
	RoomDN string `json:"room_dn"`

	// Addresses are the device's IP addresses in preference order.
	Addresses []string `json:"addresses"`

	// MACAddress is the primary interface's hardware address.
	MACAddress string `json:"mac_address,omitempty"`

	// IsTeacher marks the teacher's machine in the room.
	IsTeacher bool `json:"is_teacher"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
