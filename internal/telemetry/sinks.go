package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/devicehub/internal/infrastructure/mqtt"
)

// Publisher sends a message to the broker. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink republishes each record as JSON on
// {prefix}/telemetry/{device_id}/{topic}.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub Publisher, topics mqtt.Topics, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topics: topics, qos: qos}
}

// Deliver publishes every record, continuing past failures.
func (s *MQTTSink) Deliver(_ context.Context, records []Record) error {
	var errs []error
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshalling record: %w", err))
			continue
		}
		topic := s.topics.Telemetry(rec.Metadata.DeviceID, rec.Metadata.Topic)
		if err := s.pub.Publish(topic, payload, s.qos, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PointWriter queues a telemetry point. *influxdb.Client satisfies it.
type PointWriter interface {
	WriteTelemetry(deviceID int64, topic string, value float64, ts time.Time)
}

// InfluxSink mirrors records into InfluxDB. Writes are asynchronous, so
// failures surface through the client's error callback instead.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Deliver queues every record.
func (s *InfluxSink) Deliver(_ context.Context, records []Record) error {
	for _, rec := range records {
		s.w.WriteTelemetry(rec.Metadata.DeviceID, rec.Metadata.Topic, rec.Value, rec.Timestamp)
	}
	return nil
}
