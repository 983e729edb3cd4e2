package repository

import (
	"context"
	"time"

	"lanwatch/internal/domain"
)

// DeviceStore defines the interface for device persistence. Every backend
// keeps address unique and never moves LastSeenAt backwards.
type DeviceStore interface {
	// Read operations
	ListDevices(ctx context.Context) ([]domain.Device, error)
	GetDevice(ctx context.Context, address string) (*domain.Device, error)

	// InsertDevice creates a record. Returns domain.ErrDuplicateKey when the
	// address already exists.
	InsertDevice(ctx context.Context, device *domain.Device) error

	// TouchDevice records a new sighting: status is replaced unless the
	// record is pinned, and last_seen_at becomes max(old, seenAt). Returns
	// domain.ErrNotFound when the address does not exist.
	TouchDevice(ctx context.Context, address string, status domain.Status, seenAt time.Time) error

	// Manual edits
	UpdateDevice(ctx context.Context, device *domain.Device) error
	DeleteDevice(ctx context.Context, address string) error

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close releases resources
	Close() error
}
