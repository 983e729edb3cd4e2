// Package postgres implements repository.DeviceStore on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"lanwatch/internal/domain"
)

// Options configures the connection pool
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Repository implements repository.DeviceStore using PostgreSQL
type Repository struct {
	db *sql.DB
}

// New wraps an existing connection pool. The schema is not migrated.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open connects to dsn, verifies the connection and migrates the schema
func Open(ctx context.Context, dsn string, opts Options) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := New(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return repo, nil
}

const schema = `CREATE TABLE IF NOT EXISTS devices (
	address TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT 'Auto-Discovered',
	linked_area TEXT NOT NULL DEFAULT 'Internal-LAN',
	status TEXT NOT NULL CHECK (status IN ('Allowed', 'Blocked', 'Maintenance')),
	last_seen_at TIMESTAMPTZ NOT NULL,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	pinned BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices (last_seen_at DESC);`

// Migrate creates the devices table if needed
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create devices table: %w", err)
	}
	return nil
}

const deviceColumns = `address, display_name, location, linked_area, status, last_seen_at, latitude, longitude, pinned, created_at`

const (
	listQuery   = `SELECT ` + deviceColumns + ` FROM devices ORDER BY last_seen_at DESC, address ASC`
	getQuery    = `SELECT ` + deviceColumns + ` FROM devices WHERE address = $1`
	insertQuery = `INSERT INTO devices (` + deviceColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (address) DO NOTHING`
	touchQuery  = `UPDATE devices SET status = CASE WHEN pinned THEN status ELSE $2 END, last_seen_at = GREATEST(last_seen_at, $3) WHERE address = $1`
	updateQuery = `UPDATE devices SET display_name = $2, location = $3, linked_area = $4, status = $5, last_seen_at = GREATEST(last_seen_at, $6), latitude = $7, longitude = $8, pinned = $9 WHERE address = $1`
	deleteQuery = `DELETE FROM devices WHERE address = $1`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*domain.Device, error) {
	var (
		d        domain.Device
		status   string
		lat, lon sql.NullFloat64
	)
	if err := s.Scan(&d.Address, &d.DisplayName, &d.Location, &d.LinkedArea, &status,
		&d.LastSeenAt, &lat, &lon, &d.Pinned, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Status = domain.Status(status)
	if lat.Valid {
		d.Latitude = &lat.Float64
	}
	if lon.Valid {
		d.Longitude = &lon.Float64
	}
	d.LastSeenAt = d.LastSeenAt.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

// ListDevices returns every device, most recently seen first
func (r *Repository) ListDevices(ctx context.Context) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []domain.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	return devices, nil
}

// GetDevice returns the device for address, or nil if it does not exist
func (r *Repository) GetDevice(ctx context.Context, address string) (*domain.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, getQuery, address))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", address, err)
	}
	return d, nil
}

// InsertDevice creates a device; an existing address yields ErrDuplicateKey
func (r *Repository) InsertDevice(ctx context.Context, d *domain.Device) error {
	res, err := r.db.ExecContext(ctx, insertQuery,
		d.Address, d.DisplayName, d.Location, d.LinkedArea, string(d.Status),
		d.LastSeenAt.UTC(), nullFloat(d.Latitude), nullFloat(d.Longitude), d.Pinned, d.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert device %s: %w", d.Address, err)
	}
	return expectRow(res, d.Address, domain.ErrDuplicateKey)
}

// TouchDevice records a sighting, keeping last_seen_at monotonic and the
// status of pinned devices intact
func (r *Repository) TouchDevice(ctx context.Context, address string, status domain.Status, seenAt time.Time) error {
	res, err := r.db.ExecContext(ctx, touchQuery, address, string(status), seenAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to touch device %s: %w", address, err)
	}
	return expectRow(res, address, domain.ErrNotFound)
}

// UpdateDevice applies a manual edit; created_at is never changed
func (r *Repository) UpdateDevice(ctx context.Context, d *domain.Device) error {
	res, err := r.db.ExecContext(ctx, updateQuery,
		d.Address, d.DisplayName, d.Location, d.LinkedArea, string(d.Status),
		d.LastSeenAt.UTC(), nullFloat(d.Latitude), nullFloat(d.Longitude), d.Pinned)
	if err != nil {
		return fmt.Errorf("failed to update device %s: %w", d.Address, err)
	}
	return expectRow(res, d.Address, domain.ErrNotFound)
}

// DeleteDevice removes a device
func (r *Repository) DeleteDevice(ctx context.Context, address string) error {
	res, err := r.db.ExecContext(ctx, deleteQuery, address)
	if err != nil {
		return fmt.Errorf("failed to delete device %s: %w", address, err)
	}
	return expectRow(res, address, domain.ErrNotFound)
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the connection pool
func (r *Repository) Close() error {
	return r.db.Close()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

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
