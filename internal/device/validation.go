package device

import (
	"fmt"
	"strings"
)

const (
	maxNameLength  = 128
	maxTopicLength = 128
)

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateTopic checks that a topic can be used as a single URL path
// segment and a single MQTT topic level.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d characters", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsAny(topic, "/+#") {
		return fmt.Errorf("%w: topic %q contains a reserved character", ErrInvalidTopic, topic)
	}
	return nil
}

// normaliseTopics validates topics and removes duplicates, keeping the
// first occurrence of each.
func normaliseTopics(topics []string) ([]string, error) {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if err := ValidateTopic(t); err != nil {
			return nil, err
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}
