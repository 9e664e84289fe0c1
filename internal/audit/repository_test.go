package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/devicehub/internal/infrastructure/database"
	_ "github.com/nerrad567/devicehub/migrations"
)

func setupTestDB(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
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
	return NewSQLiteRepository(db.DB)
}

func TestCreate_GeneratesIDAndTime(t *testing.T) {
	repo := setupTestDB(t)

	entry := &Entry{Action: ActionRegister, EntityType: EntityAccount, EntityID: "1", AccountID: 1, Source: "api"}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(entry.ID, "aud-") || len(entry.ID) != len("aud-")+8 {
		t.Errorf("ID = %q, want aud-xxxxxxxx", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestList(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Action: ActionRegister, EntityType: EntityAccount, EntityID: "1", AccountID: 1, CreatedAt: base},
		{Action: ActionRegister, EntityType: EntityDevice, EntityID: "10", AccountID: 1, CreatedAt: base.Add(time.Second),
			Details: map[string]any{"name": "thermo"}},
		{Action: ActionAddTopics, EntityType: EntityDevice, EntityID: "10", AccountID: 1, CreatedAt: base.Add(1500 * time.Millisecond)},
		{Action: ActionRegister, EntityType: EntityAccount, EntityID: "2", AccountID: 2, CreatedAt: base.Add(3 * time.Second)},
	}
	for i := range entries {
		entries[i].Source = "api"
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name       string
		filter     Filter
		wantTotal  int
		wantFirst  string
		wantLength int
	}{
		{name: "account scoped newest first", filter: Filter{AccountID: 1}, wantTotal: 3, wantFirst: ActionAddTopics, wantLength: 3},
		{name: "by action", filter: Filter{AccountID: 1, Action: ActionRegister}, wantTotal: 2, wantFirst: ActionRegister, wantLength: 2},
		{name: "by entity", filter: Filter{EntityType: EntityDevice, EntityID: "10"}, wantTotal: 2, wantFirst: ActionAddTopics, wantLength: 2},
		{name: "paged", filter: Filter{AccountID: 1, Limit: 1, Offset: 1}, wantTotal: 3, wantFirst: ActionRegister, wantLength: 1},
		{name: "no match", filter: Filter{AccountID: 99}, wantTotal: 0, wantLength: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
			if len(result.Entries) != tt.wantLength {
				t.Fatalf("len(Entries) = %d, want %d", len(result.Entries), tt.wantLength)
			}
			if tt.wantLength > 0 && result.Entries[0].Action != tt.wantFirst {
				t.Errorf("first action = %q, want %q", result.Entries[0].Action, tt.wantFirst)
			}
		})
	}

	t.Run("details round trip", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{Action: ActionRegister, EntityType: EntityDevice})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if got := result.Entries[0].Details["name"]; got != "thermo" {
			t.Errorf("Details[name] = %v, want thermo", got)
		}
		if !result.Entries[0].CreatedAt.Equal(base.Add(time.Second)) {
			t.Errorf("CreatedAt = %v", result.Entries[0].CreatedAt)
		}
	})
}

func TestList_LimitClamping(t *testing.T) {
	repo := setupTestDB(t)

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: defaultLimit},
		{limit: -5, want: defaultLimit},
		{limit: 10, want: 10},
		{limit: 1000, want: maxLimit},
	}

	for _, tt := range tests {
		result, err := repo.List(context.Background(), Filter{Limit: tt.limit})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Limit != tt.want {
			t.Errorf("List(limit=%d).Limit = %d, want %d", tt.limit, result.Limit, tt.want)
		}
	}
}
