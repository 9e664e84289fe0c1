package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/devicehub/internal/infrastructure/mqtt"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic, payload, qos, retained})
	return nil
}

func TestMQTTSink_Deliver(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, mqtt.NewTopics("devicehub"), 1)

	records := []Record{
		rec(7, "temp", testNow, 23.5),
		rec(7, "humidity", testNow, 40),
	}
	if err := sink.Deliver(context.Background(), records); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if len(pub.messages) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.messages))
	}

	msg := pub.messages[0]
	if msg.topic != "devicehub/telemetry/7/temp" {
		t.Errorf("topic = %q, want devicehub/telemetry/7/temp", msg.topic)
	}
	if msg.qos != 1 || msg.retained {
		t.Errorf("qos/retained = %d/%v, want 1/false", msg.qos, msg.retained)
	}

	var got Record
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload is not a record: %v", err)
	}
	if got.Value != 23.5 || !got.Timestamp.Equal(testNow) {
		t.Errorf("payload = %+v", got)
	}
}

func TestMQTTSink_DeliverError(t *testing.T) {
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	sink := NewMQTTSink(pub, mqtt.NewTopics("devicehub"), 0)

	err := sink.Deliver(context.Background(), []Record{rec(1, "temp", testNow, 1)})
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Deliver() error = %v, want ErrNotConnected", err)
	}
}

type written struct {
	deviceID int64
	topic    string
	value    float64
	ts       time.Time
}

type fakePointWriter struct {
	points []written
}

func (w *fakePointWriter) WriteTelemetry(deviceID int64, topic string, value float64, ts time.Time) {
	w.points = append(w.points, written{deviceID, topic, value, ts})
}

func TestInfluxSink_Deliver(t *testing.T) {
	w := &fakePointWriter{}
	sink := NewInfluxSink(w)

	if err := sink.Deliver(context.Background(), []Record{rec(3, "temp", testNow, 19)}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	want := written{3, "temp", 19, testNow}
	if len(w.points) != 1 || w.points[0] != want {
		t.Errorf("points = %+v, want [%+v]", w.points, want)
	}
}
