package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/devicehub/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is devicehub's broker connection. It publishes a retained
// presence document, replays subscriptions after reconnects and is safe
// for concurrent use.
type Client struct {
	client   pahomqtt.Client
	clientID string
	broker   string
	qos      byte
	topics   Topics

	online atomic.Bool

	logMu  sync.RWMutex
	logger Logger

	subMu sync.RWMutex
	subs  map[string]subscription
}

// newPahoClient is replaced in tests.
var newPahoClient = pahomqtt.NewClient

// Connect dials the broker and waits for the first CONNACK, giving up
// when ctx ends or connectTimeout passes. Later drops are retried by
// paho in the background.
func Connect(ctx context.Context, cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		clientID: cfg.Broker.ClientID,
		broker:   brokerURL(cfg.Broker),
		qos:      byte(cfg.QoS), //nolint:gosec // G115: config keeps it in 0-2
		topics:   NewTopics(cfg.TopicPrefix),
		subs:     make(map[string]subscription),
		logger:   noopLogger{},
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, c.clientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = newPahoClient(opts)
	if err := waitConnect(ctx, c.client.Connect()); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.broker, err)
	}

	// OnConnect fires asynchronously; callers may publish straight away.
	c.online.Store(true)
	return c, nil
}

func waitConnect(ctx context.Context, token pahomqtt.Token) error {
	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("no CONNACK within %v", connectTimeout)
	}
}

func (c *Client) handleConnect() {
	c.online.Store(true)
	c.resubscribe()
	c.client.Publish(c.topics.SystemStatus(), c.qos, true, presence("online", c.clientID, ""))
	c.log().Info("mqtt connected", "broker", c.broker, "subscriptions", c.SubscriptionCount())
}

func (c *Client) handleDisconnect(err error) {
	c.online.Store(false)
	c.log().Warn("mqtt connection lost", "broker", c.broker, "error", err)
}

// Close marks devicehub offline and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(c.topics.SystemStatus(), c.qos, true,
			presence("offline", c.clientID, "graceful_shutdown")).WaitTimeout(operationTimeout)
	}
	c.client.Disconnect(quiesceMillis)
	c.online.Store(false)
	return nil
}

// HealthCheck fails while the broker connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected combines our view with paho's.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.client.IsConnected()
}

// Topics returns the builder for the configured prefix.
func (c *Client) Topics() Topics { return c.topics }

// QoS returns the configured default QoS.
func (c *Client) QoS() byte { return c.qos }

// SetLogger sets where connection events and handler failures go.
func (c *Client) SetLogger(logger Logger) {
	c.logMu.Lock()
	c.logger = logger
	c.logMu.Unlock()
}

func (c *Client) log() Logger {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	return c.logger
}
