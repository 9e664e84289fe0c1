// Package telemetry stores time-series values posted against a device topic.
//
// Records are append-only and keyed by (device id, topic, timestamp). The
// Store offers two reads: the newest record, and every record inside an
// inclusive time window, newest first.
//
// # Payloads
//
// Clients may post a single point or an array of points, and each point may
// be a bare number or an object with an optional RFC 3339 timestamp:
//
//	{"payload": 23.5}
//	{"payload": {"timestamp": "2026-03-01T12:00:00Z", "value": 23.5}}
//	{"payload": [21.0, {"value": 22.5}]}
//
// Payload normalises every shape to a slice of points at decode time. A
// batch is written in a single transaction, so either every point is
// stored or none is.
//
// # Fan-out
//
// After a successful commit the Store hands the new records to its sinks
// (WebSocket hub, MQTT, InfluxDB). Sink failures are logged and never fail
// the append. The Ingestor accepts the same payloads from the MQTT broker.
package telemetry
