package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the mirror is switched off.
	ErrDisabled = errors.New("influxdb: mirror disabled")

	// ErrIncompleteConfig means url, org or bucket is missing.
	ErrIncompleteConfig = errors.New("influxdb: url, org and bucket are required")

	// ErrConnectionFailed wraps the ping failure seen by Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned once the client has been closed.
	ErrNotConnected = errors.New("influxdb: not connected")
)
