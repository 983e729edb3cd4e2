// Package memory provides an in-process DeviceStore backed by a map.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lanwatch/internal/domain"
)

// Repository implements repository.DeviceStore with a single mutex guarded map
type Repository struct {
	mu      sync.Mutex
	devices map[string]domain.Device
	closed  bool
}

// New creates an empty in-memory repository
func New() *Repository {
	return &Repository{devices: make(map[string]domain.Device)}
}

// ListDevices returns all devices, most recently seen first
func (r *Repository) ListDevices(ctx context.Context) ([]domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	devices := make([]domain.Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d.Clone())
	}
	domain.SortByLastSeen(devices)
	return devices, nil
}

// GetDevice returns the device for address or nil if absent
func (r *Repository) GetDevice(ctx context.Context, address string) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	d, ok := r.devices[address]
	if !ok {
		return nil, nil
	}
	c := d.Clone()
	return &c, nil
}

// InsertDevice stores a new device
func (r *Repository) InsertDevice(ctx context.Context, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return err
	}

	if _, exists := r.devices[device.Address]; exists {
		return fmt.Errorf("insert %s: %w", device.Address, domain.ErrDuplicateKey)
	}
	r.devices[device.Address] = device.Clone()
	return nil
}

// TouchDevice records a sighting of an existing device
func (r *Repository) TouchDevice(ctx context.Context, address string, status domain.Status, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return err
	}

	d, ok := r.devices[address]
	if !ok {
		return fmt.Errorf("touch %s: %w", address, domain.ErrNotFound)
	}
	d.Observe(status, seenAt)
	r.devices[address] = d
	return nil
}

// UpdateDevice replaces the editable fields of an existing device
func (r *Repository) UpdateDevice(ctx context.Context, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return err
	}

	old, ok := r.devices[device.Address]
	if !ok {
		return fmt.Errorf("update %s: %w", device.Address, domain.ErrNotFound)
	}
	updated := device.Clone()
	updated.CreatedAt = old.CreatedAt
	if old.LastSeenAt.After(updated.LastSeenAt) {
		updated.LastSeenAt = old.LastSeenAt
	}
	r.devices[device.Address] = updated
	return nil
}

// DeleteDevice removes a device
func (r *Repository) DeleteDevice(ctx context.Context, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return err
	}

	if _, ok := r.devices[address]; !ok {
		return fmt.Errorf("delete %s: %w", address, domain.ErrNotFound)
	}
	delete(r.devices, address)
	return nil
}

// Ping reports whether the repository is open
func (r *Repository) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.check(ctx)
}

// Close marks the repository closed; later calls fail
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// check must be called with mu held
func (r *Repository) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed {
		return fmt.Errorf("memory repository closed: %w", domain.ErrStorageUnavailable)
	}
	return nil
}
