package api

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/devicehub/internal/infrastructure/config"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/telemetry"
)

// Stream message types.
const (
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeEvent = "event"
	WSTypeError = "error"
)

// wsSendBufferSize is how many messages may queue for one client before
// further events are dropped for it.
const wsSendBufferSize = 256

// WSMessage is the JSON frame exchanged on a stream.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// TelemetryChannel is the hub channel for one device topic,
// e.g. telemetry.7.temp.
func TelemetryChannel(deviceID int64, topic string) string {
	return "telemetry." + strconv.FormatInt(deviceID, 10) + "." + topic
}

// Hub fans telemetry out to stream clients. Clients are indexed by the
// channel they opened, so a broadcast touches only its own subscribers.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu       sync.RWMutex
	channels map[string]map[*WSClient]struct{}
	count    int
}

// WSClient is one open stream, bound to a single channel for its life.
type WSClient struct {
	hub       *Hub
	conn      *websocket.Conn
	channel   string
	accountID int64

	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		channels: make(map[string]map[*WSClient]struct{}),
	}
}

// Run waits for ctx to end and then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	var all []*WSClient
	for _, subs := range h.channels {
		for c := range subs {
			all = append(all, c)
		}
	}
	h.channels = make(map[string]map[*WSClient]struct{})
	h.count = 0
	h.mu.Unlock()

	for _, c := range all {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register attaches c to its channel.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	subs, ok := h.channels[c.channel]
	if !ok {
		subs = make(map[*WSClient]struct{})
		h.channels[c.channel] = subs
	}
	if _, dup := subs[c]; !dup {
		subs[c] = struct{}{}
		h.count++
	}
	n := h.count
	h.mu.Unlock()

	h.logger.Debug("stream opened", "channel", c.channel, "account_id", c.accountID, "clients", n)
}

// Unregister detaches c and closes its queue. Repeated calls are no-ops.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	subs := h.channels[c.channel]
	_, ok := subs[c]
	if ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, c.channel)
		}
		h.count--
	}
	n := h.count
	h.mu.Unlock()

	if ok {
		c.shutdown()
		h.logger.Debug("stream closed", "channel", c.channel, "clients", n)
	}
}

// Broadcast sends payload as an event to every client on channel.
func (h *Hub) Broadcast(channel string, payload any) {
	h.mu.RLock()
	subs := make([]*WSClient, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding stream event", "channel", channel, "error", err)
		return
	}

	for _, c := range subs {
		if !c.trySend(data) {
			h.logger.Warn("stream client too slow, event dropped", "channel", channel, "account_id", c.accountID)
		}
	}
}

// ClientCount returns the number of open streams.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// trySend queues data without blocking. It reports false when the queue
// is full or the client has gone.
func (c *WSClient) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) shutdown() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// HubSink is the telemetry sink that feeds streams.
type HubSink struct {
	hub *Hub
}

// NewHubSink returns a sink broadcasting on hub.
func NewHubSink(hub *Hub) *HubSink {
	return &HubSink{hub: hub}
}

// Deliver publishes each record on its device topic channel.
func (s *HubSink) Deliver(_ context.Context, records []telemetry.Record) error {
	for _, rec := range records {
		s.hub.Broadcast(TelemetryChannel(rec.Metadata.DeviceID, rec.Metadata.Topic), rec)
	}
	return nil
}
