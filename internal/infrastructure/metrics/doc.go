// Package metrics exposes devicehub's Prometheus collectors.
//
// A Metrics value owns its own registry, so several can coexist in tests.
// It provides HTTP instrumentation middleware, the telemetry record
// counter, and gauges backed by callbacks (WebSocket clients, broker
// connection state). The Go runtime, process, and database pool
// collectors are registered alongside.
//
//	m := metrics.New()
//	m.RegisterDB(db.DB)
//	router.Use(m.Instrument)
//	router.Handle("/metrics", m.Handler())
package metrics
