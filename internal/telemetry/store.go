package telemetry

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Timestamps are stored as unix nanoseconds, which bounds the instants a
// record can carry.
var (
	minTimestamp = time.Unix(0, math.MinInt64).UTC()
	maxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// Logger defines the logging interface used by the Store and Ingestor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics counts appended records by source.
type Metrics interface {
	RecordsAppended(source string, n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordsAppended(string, int) {}

// Sink receives records after they are committed.
type Sink interface {
	Deliver(ctx context.Context, records []Record) error
}

// Store appends and queries telemetry.
//
// Metrics and the logger must be set before the Store is shared between
// goroutines. Sinks may be added at any time.
type Store struct {
	repo    Repository
	mu      sync.RWMutex
	sinks   []Sink
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

// NewStore creates a Store over repo, delivering to sinks after each append.
func NewStore(repo Repository, sinks ...Sink) *Store {
	return &Store{
		repo:    repo,
		sinks:   sinks,
		metrics: noopMetrics{},
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetMetrics sets the metrics recorder.
func (s *Store) SetMetrics(m Metrics) {
	s.metrics = m
}

// AddSink registers another sink.
func (s *Store) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Append stores the payload's points against (deviceID, topic). Callers are
// responsible for confirming the topic is registered on the device.
//
// Points without a timestamp share a single capture of the current time.
// The returned records are in payload order.
func (s *Store) Append(ctx context.Context, deviceID int64, topic string, payload Payload) ([]Record, error) {
	return s.appendFrom(ctx, SourceHTTP, deviceID, topic, payload)
}

func (s *Store) appendFrom(ctx context.Context, source string, deviceID int64, topic string, payload Payload) ([]Record, error) {
	if len(payload.Points) == 0 {
		return nil, fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}

	now := s.now().UTC()
	records := make([]Record, len(payload.Points))
	for i, p := range payload.Points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("%w: value must be finite", ErrInvalidPayload)
		}
		ts := now
		if !p.Timestamp.IsZero() {
			ts = p.Timestamp.UTC()
			if ts.Before(minTimestamp) || ts.After(maxTimestamp) {
				return nil, fmt.Errorf("%w: timestamp %s out of range", ErrInvalidPayload, p.Timestamp.Format(time.RFC3339))
			}
		}
		records[i] = Record{
			Timestamp: ts,
			Metadata:  Metadata{DeviceID: deviceID, Topic: topic},
			Value:     p.Value,
		}
	}

	if err := s.repo.Append(ctx, records); err != nil {
		return nil, err
	}
	s.metrics.RecordsAppended(source, len(records))
	s.logger.Debug("telemetry appended", "device_id", deviceID, "topic", topic, "records", len(records), "source", source)

	s.deliver(ctx, records)
	return records, nil
}

func (s *Store) deliver(ctx context.Context, records []Record) {
	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Deliver(ctx, records); err != nil {
			s.logger.Warn("telemetry sink failed", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
}

// Latest returns the newest record for the stream, or ErrNoData.
func (s *Store) Latest(ctx context.Context, deviceID int64, topic string) (*Record, error) {
	return s.repo.Latest(ctx, deviceID, topic)
}

// Periodic returns records with from <= timestamp <= to, newest first.
// An empty window is ErrNoData.
func (s *Store) Periodic(ctx context.Context, deviceID int64, topic string, from, to time.Time) ([]Record, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	records, err := s.repo.Range(ctx, deviceID, topic, clampTimestamp(from), clampTimestamp(to))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoData
	}
	return records, nil
}

func clampTimestamp(t time.Time) time.Time {
	switch {
	case t.Before(minTimestamp):
		return minTimestamp
	case t.After(maxTimestamp):
		return maxTimestamp
	}
	return t.UTC()
}
