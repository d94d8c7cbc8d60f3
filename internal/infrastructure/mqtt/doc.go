// Package mqtt publishes room-monitoring state events to an MQTT broker.
//
// The publisher is optional; when the mqtt section of config.yaml is
// disabled the rest of the system runs without it. When enabled, device
// state snapshots and demo lifecycle events are published as retained JSON
// messages so dashboards and integrations can follow a room without polling
// the REST API.
//
// The client wraps paho.mqtt.golang with auto-reconnect and a Last Will and
// Testament on the system status topic, so subscribers can distinguish a
// crashed service from a gracefully stopped one.
//
// Thread Safety:
//   - All methods on Client are safe for concurrent use.
package mqtt
