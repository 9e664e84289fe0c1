package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Record sources, used as the metrics label.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Metadata identifies the stream a record belongs to.
type Metadata struct {
	DeviceID int64  `json:"device_id"`
	Topic    string `json:"topic"`
}

// Record is a single stored value.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata"`
	Value     float64   `json:"value"`
}

// Point is one submitted value. A zero Timestamp means "now".
type Point struct {
	Timestamp time.Time
	Value     float64
}

// UnmarshalJSON accepts a bare number or {"timestamp"?, "value"}.
func (p *Point) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: empty point", ErrInvalidPayload)
	}

	if data[0] != '{' {
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("%w: value must be a number", ErrInvalidPayload)
		}
		*p = Point{Value: v}
		return nil
	}

	var obj struct {
		Timestamp *time.Time `json:"timestamp"`
		Value     *float64   `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if obj.Value == nil {
		return fmt.Errorf("%w: value is required", ErrInvalidPayload)
	}

	*p = Point{Value: *obj.Value}
	if obj.Timestamp != nil {
		p.Timestamp = *obj.Timestamp
	}
	return nil
}

// Payload is a decoded telemetry submission. Batch records whether the
// client sent an array, so the response can mirror the request shape.
type Payload struct {
	Points []Point
	Batch  bool
}

// Scalar wraps a single point.
func Scalar(p Point) Payload {
	return Payload{Points: []Point{p}}
}

// BatchOf wraps a list of points.
func BatchOf(points ...Point) Payload {
	return Payload{Points: points, Batch: true}
}

// UnmarshalJSON decodes a single point or a non-empty array of points.
func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}

	if data[0] == '[' {
		var points []Point
		if err := json.Unmarshal(data, &points); err != nil {
			return err
		}
		if len(points) == 0 {
			return fmt.Errorf("%w: payload array is empty", ErrInvalidPayload)
		}
		*p = Payload{Points: points, Batch: true}
		return nil
	}

	var point Point
	if err := json.Unmarshal(data, &point); err != nil {
		return err
	}
	*p = Scalar(point)
	return nil
}
