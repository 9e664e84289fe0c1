// Package influxdb mirrors accepted telemetry into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. SQLite remains the
// system of record; InfluxDB receives a copy of every record for
// dashboards and long-range queries.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTelemetry(7, "temp", 21.5, ts)
//
// # Error Handling
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Failed batches are reported through the callback set
// with SetOnError. Connection and health check errors are returned
// directly. Stats exposes queued and failed counts for the metrics
// endpoint.
package influxdb
