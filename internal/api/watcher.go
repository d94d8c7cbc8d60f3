package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/roomwatch/roomwatch-core/internal/infrastructure/mqtt"
	"github.com/roomwatch/roomwatch-core/internal/monitor"
)

// watchState periodically drains the controller's changed-device flags and
// fans the snapshots out to the push channels: WebSocket clients, the MQTT
// broker, and the metrics writer.
//
// The watcher is the sole consumer of the one-shot changed flags. REST
// clients reading GET /devices/changed race it, which is why that endpoint
// exists for consoles that opt out of push entirely.
func (s *Server) watchState(ctx context.Context) {
	interval := time.Duration(s.pollCfg.Interval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishChanges()
		}
	}
}

// publishChanges pushes one round of changed snapshots to all sinks.
func (s *Server) publishChanges() {
	room, ok := s.controller.Room()
	if !ok {
		return
	}

	changed := s.controller.ChangedDevices()
	if len(changed) == 0 {
		return
	}

	for _, snapshot := range changed {
		s.hub.Broadcast(ChannelDeviceState, snapshot)
		s.publishDeviceState(room, snapshot)
	}

	s.recordMetrics(room)
}

// publishDeviceState publishes one device snapshot as a retained MQTT
// message, so late subscribers see the room's current state immediately.
func (s *Server) publishDeviceState(room monitor.Room, snapshot monitor.DeviceSnapshot) {
	if s.mqtt == nil {
		return
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("failed to marshal device state", "device", snapshot.Name, "error", err)
		return
	}

	topic := mqtt.Topics{}.DeviceState(room.Name, snapshot.Name)
	if err := s.mqtt.PublishRetained(topic, payload); err != nil {
		s.logger.Warn("device state publish failed", "device", snapshot.Name, "error", err)
	}
}

// publishRoomSelected announces a room switch on the push channels.
func (s *Server) publishRoomSelected(room monitor.Room, deviceCount int) {
	event := map[string]any{
		"room":    room,
		"devices": deviceCount,
	}

	if s.hub != nil {
		s.hub.Broadcast(ChannelRoomSelected, event)
	}

	if s.mqtt != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		topic := mqtt.Topics{}.RoomSelected(room.Name)
		if err := s.mqtt.PublishRetained(topic, payload); err != nil {
			s.logger.Warn("room selected publish failed", "room", room.Name, "error", err)
		}
	}
}

// publishDemoEvent announces a demo start or stop on the push channels.
func (s *Server) publishDemoEvent(action string, demo monitor.DemoSession) {
	event := map[string]any{
		"action": action,
		"demo":   demo,
	}

	if s.hub != nil {
		s.hub.Broadcast(ChannelDemo, event)
	}

	if s.mqtt == nil {
		return
	}
	room, ok := s.controller.Room()
	if !ok {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	topic := mqtt.Topics{}.Demo(room.Name)
	if err := s.mqtt.Publish(topic, payload, 1, false); err != nil {
		s.logger.Warn("demo event publish failed", "room", room.Name, "error", err)
	}
}

// recordMetrics writes per-device and per-room telemetry for the current
// poll interval.
func (s *Server) recordMetrics(room monitor.Room) {
	if s.metrics == nil {
		return
	}

	snapshots := s.controller.ListDevices()
	connected := 0
	for _, snapshot := range snapshots {
		isConnected := snapshot.Connectivity == monitor.ConnectivityConnected
		if isConnected {
			connected++
		}
		s.metrics.WriteDeviceStatus(room.Name, snapshot.Name, isConnected, snapshot.UserLogin != "")
	}
	s.metrics.WriteRoomSummary(room.Name, connected, len(snapshots))
}
