package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists telemetry records.
type Repository interface {
	// Append stores records atomically.
	Append(ctx context.Context, records []Record) error

	// Latest returns the newest record for the stream, or ErrNoData.
	Latest(ctx context.Context, deviceID int64, topic string) (*Record, error)

	// Range returns records with from <= timestamp <= to, newest first.
	// It returns an empty slice when nothing matches.
	Range(ctx context.Context, deviceID int64, topic string, from, to time.Time) ([]Record, error)
}

// SQLiteRepository implements Repository using SQLite.
//
// Timestamps are stored as UTC unix nanoseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite telemetry repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts every record in one transaction.
func (r *SQLiteRepository) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO telemetry (device_id, topic, recorded_at, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing telemetry insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.Metadata.DeviceID, rec.Metadata.Topic, rec.Timestamp.UnixNano(), rec.Value,
		); err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing telemetry: %w", err)
	}
	return nil
}

// Latest returns the newest record. Ties on timestamp go to the later insert.
func (r *SQLiteRepository) Latest(ctx context.Context, deviceID int64, topic string) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT device_id, topic, recorded_at, value
		 FROM telemetry
		 WHERE device_id = ? AND topic = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT 1`,
		deviceID, topic,
	)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("querying latest record: %w", err)
	}
	return rec, nil
}

// Range returns records inside [from, to], newest first.
func (r *SQLiteRepository) Range(ctx context.Context, deviceID int64, topic string, from, to time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_id, topic, recorded_at, value
		 FROM telemetry
		 WHERE device_id = ? AND topic = ? AND recorded_at BETWEEN ? AND ?
		 ORDER BY recorded_at DESC, id DESC`,
		deviceID, topic, from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var nanos int64
	if err := s.Scan(&rec.Metadata.DeviceID, &rec.Metadata.Topic, &nanos, &rec.Value); err != nil {
		return nil, err
	}
	rec.Timestamp = time.Unix(0, nanos).UTC()
	return &rec, nil
}
