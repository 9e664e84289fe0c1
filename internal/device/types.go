package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Device is a registered telemetry source owned by one account.
type Device struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Name      string    `json:"name"`
	Topics    []string  `json:"topics"`
	CreatedAt time.Time `json:"created_at"`
}

// HasTopic reports whether topic is registered on the device.
func (d *Device) HasTopic(topic string) bool {
	for _, t := range d.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// TopicChange reports the topics actually added or removed.
type TopicChange struct {
	Count  int      `json:"-"`
	Topics []string `json:"topics"`
}

// TopicList accepts either a single topic string or a list of topics
// when decoded from JSON.
type TopicList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *TopicList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = TopicList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("%w: expected a string or a list of strings", ErrInvalidTopic)
	}
	*l = many
	return nil
}
