package metrics

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceStatus records one device's poll outcome.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - room: The room the device belongs to
//   - device: The device name
//   - connected: Whether the last poll cycle reached the device
//   - userLoggedIn: Whether a user session was observed
func (c *Client) WriteDeviceStatus(room, device string, connected, userLoggedIn bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"room":   room,
			"device": device,
		},
		map[string]interface{}{
			"connected":      boolToInt(connected),
			"user_logged_in": boolToInt(userLoggedIn),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRoomSummary records per-room availability aggregates for one poll
// interval.
//
// Parameters:
//   - room: The room name
//   - connectedCount: Devices reachable this interval
//   - totalCount: Devices configured in the room
func (c *Client) WriteRoomSummary(room string, connectedCount, totalCount int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"room_summary",
		map[string]string{
			"room": room,
		},
		map[string]interface{}{
			"connected_count": connectedCount,
			"total_count":     totalCount,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// boolToInt maps a bool to 0/1 so the field graphs cleanly.
func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
