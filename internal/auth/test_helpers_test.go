package auth

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/devicehub/internal/infrastructure/database"
	_ "github.com/nerrad567/devicehub/migrations" // registers the embedded schema
)

const testSecret = "test-secret-key-for-jwt-signing-32b"

// testDB opens a migrated SQLite database in a temp directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

func testService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewAccountRepository(testDB(t)))
}

func testIssuer(t *testing.T) (*Service, *Issuer) {
	t.Helper()
	svc := testService(t)
	return svc, NewIssuer(svc, testSecret, 15*time.Minute)
}

// seedAccount registers username with password "test-password".
func seedAccount(t *testing.T, svc *Service, username string) *Account {
	t.Helper()
	account, err := svc.Register(t.Context(), username, "test-password")
	if err != nil {
		t.Fatalf("registering %s: %v", username, err)
	}
	return account
}
