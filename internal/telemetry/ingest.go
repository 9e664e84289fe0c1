package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/infrastructure/mqtt"
)

const ingestTimeout = 10 * time.Second

// Subscriber manages broker subscriptions. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// TopicResolver finds the device a topic is registered on.
// *device.Registry satisfies it.
type TopicResolver interface {
	LookupTopic(ctx context.Context, deviceID int64, topic string) (*device.Device, error)
}

// Ingestor accepts telemetry published by devices on
// {prefix}/ingest/{device_id}/{topic}. The message body has the same shape
// as the HTTP request: {"payload": ...}.
//
// Messages for unknown devices or unregistered topics, and malformed
// bodies, are logged and dropped.
type Ingestor struct {
	sub     Subscriber
	topics  mqtt.Topics
	qos     byte
	devices TopicResolver
	store   *Store
	logger  Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewIngestor creates an ingestor. Call Start to subscribe.
func NewIngestor(sub Subscriber, topics mqtt.Topics, qos byte, devices TopicResolver, store *Store) *Ingestor {
	return &Ingestor{
		sub:     sub,
		topics:  topics,
		qos:     qos,
		devices: devices,
		store:   store,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the ingestor.
func (i *Ingestor) SetLogger(logger Logger) {
	i.logger = logger
}

// Start subscribes to the ingest wildcard. Message handling stops when ctx
// is cancelled or Stop is called.
func (i *Ingestor) Start(ctx context.Context) error {
	i.mu.Lock()
	i.ctx, i.cancel = context.WithCancel(ctx)
	i.mu.Unlock()

	if err := i.sub.Subscribe(i.topics.AllIngest(), i.qos, i.handle); err != nil {
		i.cancel()
		return fmt.Errorf("subscribing to ingest topics: %w", err)
	}

	i.logger.Info("telemetry ingest started", "topic", i.topics.AllIngest())
	return nil
}

// Stop unsubscribes from the ingest wildcard.
func (i *Ingestor) Stop() error {
	i.mu.Lock()
	if i.cancel != nil {
		i.cancel()
	}
	i.mu.Unlock()

	return i.sub.Unsubscribe(i.topics.AllIngest())
}

func (i *Ingestor) handle(topic string, payload []byte) error {
	deviceID, name, err := i.topics.ParseIngest(topic)
	if err != nil {
		i.logger.Warn("ingest message dropped", "topic", topic, "error", err)
		return nil
	}

	var body struct {
		Payload Payload `json:"payload"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		i.logger.Warn("ingest message dropped", "topic", topic, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(i.context(), ingestTimeout)
	defer cancel()

	if _, err := i.devices.LookupTopic(ctx, deviceID, name); err != nil {
		i.logger.Warn("ingest message dropped", "topic", topic, "error", err)
		return nil
	}

	if _, err := i.store.appendFrom(ctx, SourceMQTT, deviceID, name, body.Payload); err != nil {
		return fmt.Errorf("ingesting %s: %w", topic, err)
	}
	return nil
}

func (i *Ingestor) context() context.Context {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ctx == nil {
		return context.Background()
	}
	return i.ctx
}
