package auth

import (
	"errors"
	"testing"
)

func TestAccountRepository_CreateAndGet(t *testing.T) {
	repo := NewAccountRepository(testDB(t))
	ctx := t.Context()

	alice := &Account{Username: "alice", PasswordHash: "hash-a"}
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if alice.ID <= 0 {
		t.Fatalf("Create() ID = %d, want > 0", alice.ID)
	}
	if alice.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}

	bob := &Account{Username: "bob", PasswordHash: "hash-b"}
	if err := repo.Create(ctx, bob); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if bob.ID <= alice.ID {
		t.Errorf("ids not monotonic: alice=%d bob=%d", alice.ID, bob.ID)
	}

	got, err := repo.GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "alice" || got.PasswordHash != "hash-a" {
		t.Errorf("GetByID() = %+v", got)
	}

	got, err = repo.GetByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.ID != bob.ID {
		t.Errorf("GetByUsername() ID = %d, want %d", got.ID, bob.ID)
	}
}

func TestAccountRepository_DuplicateUsername(t *testing.T) {
	repo := NewAccountRepository(testDB(t))
	ctx := t.Context()

	if err := repo.Create(ctx, &Account{Username: "alice", PasswordHash: "h"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, &Account{Username: "alice", PasswordHash: "h2"})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create() duplicate error = %v, want ErrUsernameExists", err)
	}
}

func TestAccountRepository_NotFound(t *testing.T) {
	repo := NewAccountRepository(testDB(t))
	ctx := t.Context()

	if _, err := repo.GetByID(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByUsername(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
	if err := repo.Delete(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Delete() error = %v, want ErrUserNotFound", err)
	}
}

func TestAccountRepository_DeleteCascadesDevices(t *testing.T) {
	db := testDB(t)
	repo := NewAccountRepository(db)
	ctx := t.Context()

	alice := &Account{Username: "alice", PasswordHash: "h"}
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO devices (owner_id, name, created_at) VALUES (?, 'thermo', '2026-01-01T00:00:00Z')`, alice.ID,
	); err != nil {
		t.Fatalf("inserting device: %v", err)
	}

	if err := repo.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		t.Fatalf("counting devices: %v", err)
	}
	if count != 0 {
		t.Errorf("devices after account delete = %d, want 0", count)
	}
}
