package mqtt

import "testing"

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", Topics{}.DeviceState("lab-3", "pc-07"), "roomwatch/room/lab-3/device/pc-07"},
		{"room selected", Topics{}.RoomSelected("lab-3"), "roomwatch/room/lab-3/selected"},
		{"demo", Topics{}.Demo("lab-3"), "roomwatch/room/lab-3/demo"},
		{"system status", Topics{}.SystemStatus(), "roomwatch/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}
