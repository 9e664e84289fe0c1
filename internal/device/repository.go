package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence.
type Repository interface {
	// Create inserts a device and its topics, assigning ID and CreatedAt.
	Create(ctx context.Context, device *Device) error

	// GetByID returns the device with its topics, or ErrDeviceNotFound.
	GetByID(ctx context.Context, id int64) (*Device, error)

	// ListByOwner returns every device owned by ownerID, oldest first.
	ListByOwner(ctx context.Context, ownerID int64) ([]Device, error)

	// Delete removes a device and its topics, or returns ErrDeviceNotFound.
	Delete(ctx context.Context, id int64) error

	// AddTopics appends topics to a device. Callers pass only topics that
	// are not yet registered.
	AddTopics(ctx context.Context, id int64, topics []string) error

	// RemoveTopics deletes topics from a device.
	RemoveTopics(ctx context.Context, id int64, topics []string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a device and its topics in one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	now := time.Now().UTC().Truncate(time.Second)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx,
		`INSERT INTO devices (owner_id, name, created_at) VALUES (?, ?, ?)`,
		device.OwnerID, device.Name, now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading device id: %w", err)
	}

	if err := insertTopics(ctx, tx, id, device.Topics); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device: %w", err)
	}

	device.ID = id
	device.CreatedAt = now
	if device.Topics == nil {
		device.Topics = []string{}
	}
	return nil
}

// GetByID retrieves a device by its ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Device, error) {
	var d Device
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at FROM devices WHERE id = ?`, id,
	).Scan(&d.ID, &d.OwnerID, &d.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	topics, err := r.topicsByDevice(ctx, "WHERE device_id = ?", id)
	if err != nil {
		return nil, err
	}
	d.Topics = topics[id]
	if d.Topics == nil {
		d.Topics = []string{}
	}
	return &d, nil
}

// ListByOwner retrieves all devices owned by an account.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID int64) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, created_at FROM devices WHERE owner_id = ? ORDER BY id`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		var d Device
		var createdAt string
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	topics, err := r.topicsByDevice(ctx,
		"WHERE device_id IN (SELECT id FROM devices WHERE owner_id = ?)", ownerID)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		devices[i].Topics = topics[devices[i].ID]
		if devices[i].Topics == nil {
			devices[i].Topics = []string{}
		}
	}
	return devices, nil
}

// Delete removes a device. Its topic rows go with it (ON DELETE CASCADE).
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// AddTopics appends topics after any already registered.
func (r *SQLiteRepository) AddTopics(ctx context.Context, id int64, topics []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := insertTopics(ctx, tx, id, topics); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing topics: %w", err)
	}
	return nil
}

// RemoveTopics deletes the given topics from a device.
func (r *SQLiteRepository) RemoveTopics(ctx context.Context, id int64, topics []string) error {
	if len(topics) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(topics)), ",")
	args := make([]any, 0, len(topics)+1)
	args = append(args, id)
	for _, t := range topics {
		args = append(args, t)
	}

	query := fmt.Sprintf("DELETE FROM device_topics WHERE device_id = ? AND topic IN (%s)", placeholders) //nolint:gosec // only placeholders are interpolated
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("removing topics: %w", err)
	}
	return nil
}

// topicsByDevice loads topic rows matching where, grouped by device id in
// insertion order.
func (r *SQLiteRepository) topicsByDevice(ctx context.Context, where string, args ...any) (map[int64][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT device_id, topic FROM device_topics "+where+" ORDER BY device_id, seq", args...)
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var deviceID int64
		var topic string
		if err := rows.Scan(&deviceID, &topic); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		out[deviceID] = append(out[deviceID], topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating topics: %w", err)
	}
	return out, nil
}

func insertTopics(ctx context.Context, tx *sql.Tx, deviceID int64, topics []string) error {
	if len(topics) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO device_topics (device_id, topic, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM device_topics WHERE device_id = ?))`)
	if err != nil {
		return fmt.Errorf("preparing topic insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range topics {
		if _, err := stmt.ExecContext(ctx, deviceID, t, deviceID); err != nil {
			return fmt.Errorf("inserting topic %q: %w", t, err)
		}
	}
	return nil
}
