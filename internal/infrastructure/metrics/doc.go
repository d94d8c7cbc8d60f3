// Package metrics records poll telemetry to InfluxDB.
//
// The writer is optional; when the metrics section of config.yaml is
// disabled the rest of the system runs without it. When enabled, each poll
// cycle records per-device reachability and per-room aggregates, giving
// administrators a history of lab availability over time.
//
// Writes are non-blocking and batched by the InfluxDB client; failures are
// delivered asynchronously via SetOnError and never stall a poll cycle.
package metrics
