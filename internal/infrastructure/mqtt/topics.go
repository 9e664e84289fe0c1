package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "devicehub"

// Topics builds and parses devicehub MQTT topics under a common prefix.
//
//	topics := mqtt.NewTopics("devicehub")
//	topics.Telemetry(7, "temp") // "devicehub/telemetry/7/temp"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. An empty prefix means DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the configured prefix.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Telemetry returns the outbound topic for accepted records.
//
// Example: devicehub/telemetry/7/temp
func (t Topics) Telemetry(deviceID int64, topic string) string {
	return fmt.Sprintf("%s/telemetry/%d/%s", t.Prefix(), deviceID, topic)
}

// Ingest returns the inbound topic a device publishes readings on.
//
// Example: devicehub/ingest/7/temp
func (t Topics) Ingest(deviceID int64, topic string) string {
	return fmt.Sprintf("%s/ingest/%d/%s", t.Prefix(), deviceID, topic)
}

// AllIngest returns the wildcard matching every ingest topic.
func (t Topics) AllIngest() string {
	return t.Prefix() + "/ingest/+/+"
}

// SystemStatus returns the retained online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// ParseIngest extracts the device id and topic name from an ingest topic.
func (t Topics) ParseIngest(full string) (deviceID int64, topic string, err error) {
	rest, ok := strings.CutPrefix(full, t.Prefix()+"/ingest/")
	if !ok {
		return 0, "", fmt.Errorf("%w: %q is not an ingest topic", ErrInvalidTopic, full)
	}

	idPart, topic, ok := strings.Cut(rest, "/")
	if !ok || topic == "" || strings.Contains(topic, "/") {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidTopic, full)
	}

	deviceID, err = strconv.ParseInt(idPart, 10, 64)
	if err != nil || deviceID <= 0 {
		return 0, "", fmt.Errorf("%w: bad device id in %q", ErrInvalidTopic, full)
	}
	return deviceID, topic, nil
}
