package monitor

import "time"

// Connectivity is the reachability state of a device.
type Connectivity string

// Connectivity values.
const (
	ConnectivityUnknown      Connectivity = "unknown"
	ConnectivityConnected    Connectivity = "connected"
	ConnectivityDisconnected Connectivity = "disconnected"
)

// Flag is a tri-state feature reading. A feature is unknown until the first
// successful poll cycle confirms it either way.
type Flag string

// Flag values.
const (
	FlagUnknown Flag = "unknown"
	FlagOn      Flag = "on"
	FlagOff     Flag = "off"
)

// flagOf converts a boolean feature status into a Flag.
func flagOf(active bool) Flag {
	if active {
		return FlagOn
	}
	return FlagOff
}

// Device is an immutable roster entry for one classroom device, supplied by
// the directory when a room is selected.
type Device struct {
	// Name is the device's unique name within the room.
	Name string `json:"name"`

	// Addresses are the device's known IP addresses in preference order.
	// A device with no addresses cannot be monitored or commanded.
	Addresses []string `json:"addresses"`

	// MACAddress is used for Wake-on-LAN when the agent is unreachable.
	MACAddress string `json:"mac_address,omitempty"`

	// IsTeacher marks the teacher's own device. Teacher devices joining a
	// demo broadcast are always started windowed.
	IsTeacher bool `json:"is_teacher"`
}

// ConfigurationOK reports whether the device has enough addressing
// information to be monitored and commanded.
func (d Device) ConfigurationOK() bool {
	return len(d.Addresses) > 0
}

// Room identifies the active classroom.
type Room struct {
	// Name is the room's display name.
	Name string `json:"name"`

	// DN is the backing directory entry the roster was resolved from.
	DN string `json:"dn,omitempty"`
}

// DeviceSnapshot is a point-in-time copy of a device's identity and live
// state, safe to hand to the serving layer.
type DeviceSnapshot struct {
	Name       string   `json:"name"`
	Addresses  []string `json:"addresses"`
	MACAddress string   `json:"mac_address,omitempty"`
	IsTeacher  bool     `json:"is_teacher"`

	Connectivity     Connectivity `json:"connectivity"`
	ReachableAddress string       `json:"reachable_address,omitempty"`

	UserLogin    string `json:"user_login"`
	UserFullName string `json:"user_full_name,omitempty"`
	TeacherLogin bool   `json:"teacher_login"`

	ScreenLocked Flag `json:"screen_locked"`
	InputLocked  Flag `json:"input_locked"`
	DemoServer   Flag `json:"demo_server"`
	DemoClient   Flag `json:"demo_client"`
}

// DemoSession describes an active screen broadcast. It exists only in memory
// while the broadcast runs.
type DemoSession struct {
	// Token is the shared secret demo clients present to the server.
	Token string `json:"token"`

	// ServerName and ServerHost identify the presenting device. ServerHost
	// is retained so the stop call reaches the server even after a room
	// switch removed it from the roster.
	ServerName string `json:"server_name"`
	ServerHost string `json:"server_host"`

	// Fullscreen is the caller's requested mode; teacher devices are forced
	// windowed regardless.
	Fullscreen bool `json:"fullscreen"`

	// ClientNames are the devices that were told to join.
	ClientNames []string `json:"client_names"`

	StartedAt time.Time `json:"started_at"`
}
