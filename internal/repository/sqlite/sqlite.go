// Package sqlite implements repository.DeviceStore on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lanwatch/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository implements repository.DeviceStore using SQLite
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared between callers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		address TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT 'Auto-Discovered',
		linked_area TEXT NOT NULL DEFAULT 'Internal-LAN',
		status TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		latitude REAL,
		longitude REAL,
		pinned INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices(last_seen_at DESC);
	`

	_, err := r.db.Exec(schema)
	return err
}

// ListDevices returns every device, most recently seen first
func (r *Repository) ListDevices(ctx context.Context) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		ORDER BY last_seen_at DESC, address ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []domain.Device{}
	for rows.Next() {
		var row deviceRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *row.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

// GetDevice returns the device for address, or nil if it does not exist
func (r *Repository) GetDevice(ctx context.Context, address string) (*domain.Device, error) {
	var row deviceRow
	err := r.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE address = ?
	`, address).Scan(row.scanArgs()...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", address, err)
	}

	return row.toDomain(), nil
}

// InsertDevice creates a device; an existing address yields ErrDuplicateKey
func (r *Repository) InsertDevice(ctx context.Context, device *domain.Device) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, deviceInsertArgs(device)...)
	if err != nil {
		return fmt.Errorf("failed to insert device %s: %w", device.Address, err)
	}

	return expectRow(res, device.Address, domain.ErrDuplicateKey)
}

// TouchDevice records a sighting, keeping last_seen_at monotonic and the
// status of pinned devices intact
func (r *Repository) TouchDevice(ctx context.Context, address string, status domain.Status, seenAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET status = CASE WHEN pinned = 0 THEN ? ELSE status END,
			last_seen_at = MAX(last_seen_at, ?)
		WHERE address = ?
	`, string(status), timeToUnix(seenAt), address)
	if err != nil {
		return fmt.Errorf("failed to touch device %s: %w", address, err)
	}

	return expectRow(res, address, domain.ErrNotFound)
}

// UpdateDevice applies a manual edit; created_at is never changed
func (r *Repository) UpdateDevice(ctx context.Context, device *domain.Device) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET display_name = ?, location = ?, linked_area = ?, status = ?,
			last_seen_at = MAX(last_seen_at, ?),
			latitude = ?, longitude = ?, pinned = ?
		WHERE address = ?
	`,
		device.DisplayName,
		device.Location,
		device.LinkedArea,
		string(device.Status),
		timeToUnix(device.LastSeenAt),
		floatPtrToNull(device.Latitude),
		floatPtrToNull(device.Longitude),
		boolToInt(device.Pinned),
		device.Address,
	)
	if err != nil {
		return fmt.Errorf("failed to update device %s: %w", device.Address, err)
	}

	return expectRow(res, device.Address, domain.ErrNotFound)
}

// DeleteDevice removes a device
func (r *Repository) DeleteDevice(ctx context.Context, address string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE address = ?", address)
	if err != nil {
		return fmt.Errorf("failed to delete device %s: %w", address, err)
	}

	return expectRow(res, address, domain.ErrNotFound)
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// expectRow converts a zero row count into sentinel
func expectRow(res sql.Result, address string, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", address, sentinel)
	}
	return nil
}
