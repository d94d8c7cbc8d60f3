package mqtt

import "fmt"

// Topic prefixes for the monitoring event hierarchy.
//
// Device state uses the scheme: roomwatch/room/{room}/device/{device}
// so a subscriber can watch a single device or a whole room with one
// wildcard subscription.
const (
	// TopicPrefix is the base for all topics published by this service.
	TopicPrefix = "roomwatch"

	// TopicPrefixSystem is the base for service-level topics.
	TopicPrefixSystem = "roomwatch/system"
)

// Topics provides builders for the MQTT topics this service publishes.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// DeviceState returns the topic for a device's state snapshot.
//
// Example: roomwatch/room/lab-3/device/pc-07
func (Topics) DeviceState(room, device string) string {
	return fmt.Sprintf("%s/room/%s/device/%s", TopicPrefix, room, device)
}

// RoomSelected returns the topic announcing the active room.
//
// Example: roomwatch/room/lab-3/selected
func (Topics) RoomSelected(room string) string {
	return fmt.Sprintf("%s/room/%s/selected", TopicPrefix, room)
}

// Demo returns the topic for demo session lifecycle events in a room.
//
// Example: roomwatch/room/lab-3/demo
func (Topics) Demo(room string) string {
	return fmt.Sprintf("%s/room/%s/demo", TopicPrefix, room)
}

// SystemStatus returns the topic for service online/offline status.
//
// Example: roomwatch/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
