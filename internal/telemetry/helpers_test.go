package telemetry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/devicehub/internal/infrastructure/database"
	_ "github.com/nerrad567/devicehub/migrations"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "telemetry.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testStore(t *testing.T, sinks ...Sink) *Store {
	t.Helper()
	s := NewStore(NewSQLiteRepository(setupTestDB(t).DB), sinks...)
	s.now = fixedClock(testNow)
	return s
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingSink captures delivered records.
type recordingSink struct {
	mu      sync.Mutex
	batches [][]Record
	err     error
}

func (s *recordingSink) Deliver(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// countingMetrics records RecordsAppended calls by source.
type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) RecordsAppended(source string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[source] += n
}

func (m *countingMetrics) get(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[source]
}
