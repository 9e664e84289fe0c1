package influxdb

import (
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// TelemetryMeasurement is the measurement every mirrored record goes to.
const TelemetryMeasurement = "telemetry"

// WriteTelemetry queues one record as
// telemetry,device_id=<id>,topic=<topic> value=<v> <ts>.
// Points queued after Close are dropped.
func (c *Client) WriteTelemetry(deviceID int64, topic string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	p := influxdb2.NewPointWithMeasurement(TelemetryMeasurement).
		AddTag("device_id", strconv.FormatInt(deviceID, 10)).
		AddTag("topic", topic).
		AddField("value", value).
		SetTime(ts)

	c.writeAPI.WritePoint(p)
	c.queued.Add(1)
}
