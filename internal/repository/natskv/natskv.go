// Package natskv implements repository.DeviceStore on a NATS JetStream
// key-value bucket. Updates are revision checked and retried on conflict.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"lanwatch/internal/domain"
)

const (
	// DefaultBucket is the bucket name used when none is configured
	DefaultBucket = "lanwatch-devices"

	maxCASAttempts = 10
)

// Options configures the bucket
type Options struct {
	Bucket   string
	Replicas int
}

// Repository implements repository.DeviceStore using JetStream KV
type Repository struct {
	kv nats.KeyValue
	nc *nats.Conn // owned connection, nil when the caller supplied js
}

// Open connects to url and binds (or creates) the bucket
func Open(url string, opts Options, natsOpts ...nats.Option) (*Repository, error) {
	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get jetstream context: %w", err)
	}

	repo, err := New(js, opts)
	if err != nil {
		nc.Close()
		return nil, err
	}
	repo.nc = nc
	return repo, nil
}

// New binds to the bucket on an existing JetStream context, creating it if
// it does not exist
func New(js nats.JetStreamContext, opts Options) (*Repository, error) {
	if opts.Bucket == "" {
		opts.Bucket = DefaultBucket
	}
	if opts.Replicas < 1 {
		opts.Replicas = 1
	}

	kv, err := js.KeyValue(opts.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      opts.Bucket,
			Description: "lanwatch device inventory",
			History:     1,
			Replicas:    opts.Replicas,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind bucket %s: %w", opts.Bucket, err)
	}

	return &Repository{kv: kv}, nil
}

// ListDevices returns every device, most recently seen first
func (r *Repository) ListDevices(ctx context.Context) ([]domain.Device, error) {
	keys, err := r.kv.Keys(nats.Context(ctx))
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []domain.Device{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	devices := make([]domain.Device, 0, len(keys))
	for _, key := range keys {
		d, _, err := r.get(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			// deleted since Keys() returned
			continue
		}
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}

	domain.SortByLastSeen(devices)
	return devices, nil
}

// GetDevice returns the device for address, or nil if it does not exist
func (r *Repository) GetDevice(ctx context.Context, address string) (*domain.Device, error) {
	d, _, err := r.get(ctx, encodeKey(address))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return d, err
}

// InsertDevice creates a device; an existing address yields ErrDuplicateKey
func (r *Repository) InsertDevice(ctx context.Context, device *domain.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("failed to encode device %s: %w", device.Address, err)
	}

	if _, err := r.kv.Create(encodeKey(device.Address), payload); err != nil {
		if isConflict(err) {
			return fmt.Errorf("%s: %w", device.Address, domain.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create device %s: %w", device.Address, err)
	}
	return nil
}

// TouchDevice records a sighting, keeping last_seen_at monotonic and the
// status of pinned devices intact
func (r *Repository) TouchDevice(ctx context.Context, address string, status domain.Status, seenAt time.Time) error {
	return r.modify(ctx, address, func(d *domain.Device) {
		d.Observe(status, seenAt)
	})
}

// UpdateDevice applies a manual edit; created_at is never changed
func (r *Repository) UpdateDevice(ctx context.Context, device *domain.Device) error {
	return r.modify(ctx, device.Address, func(d *domain.Device) {
		createdAt, lastSeen := d.CreatedAt, d.LastSeenAt
		*d = device.Clone()
		d.CreatedAt = createdAt
		if lastSeen.After(d.LastSeenAt) {
			d.LastSeenAt = lastSeen
		}
	})
}

// DeleteDevice removes a device
func (r *Repository) DeleteDevice(ctx context.Context, address string) error {
	key := encodeKey(address)
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		_, rev, err := r.get(ctx, key)
		if err != nil {
			return err
		}

		err = r.kv.Delete(key, nats.LastRevision(rev))
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return fmt.Errorf("failed to delete device %s: %w", address, err)
		}
	}
	return fmt.Errorf("failed to delete device %s: too many concurrent modifications", address)
}

// Ping checks that the bucket is reachable
func (r *Repository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.kv.Status(); err != nil {
		return fmt.Errorf("failed to read bucket status: %w", err)
	}
	return nil
}

// Close closes the owned connection, if any
func (r *Repository) Close() error {
	if r.nc != nil {
		r.nc.Close()
	}
	return nil
}

// modify applies fn to the stored device with a revision checked update,
// retrying when another writer got there first
func (r *Repository) modify(ctx context.Context, address string, fn func(*domain.Device)) error {
	key := encodeKey(address)
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		d, rev, err := r.get(ctx, key)
		if err != nil {
			return err
		}

		fn(d)
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to encode device %s: %w", address, err)
		}

		_, err = r.kv.Update(key, payload, rev)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return fmt.Errorf("failed to update device %s: %w", address, err)
		}
	}
	return fmt.Errorf("failed to update device %s: too many concurrent modifications", address)
}

func (r *Repository) get(ctx context.Context, key string) (*domain.Device, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	entry, err := r.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted) {
		return nil, 0, fmt.Errorf("%s: %w", decodeKey(key), domain.ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get device %s: %w", decodeKey(key), err)
	}

	var d domain.Device
	if err := json.Unmarshal(entry.Value(), &d); err != nil {
		return nil, 0, fmt.Errorf("failed to decode device %s: %w", decodeKey(key), err)
	}
	return &d, entry.Revision(), nil
}

// isConflict reports a failed revision check
func isConflict(err error) bool {
	if errors.Is(err, nats.ErrKeyExists) {
		return true
	}
	var apiErr *nats.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence
}

// KV keys may not contain ':', so IPv6 separators are stored as '_'.
func encodeKey(address string) string {
	return strings.ReplaceAll(address, ":", "_")
}

func decodeKey(key string) string {
	return strings.ReplaceAll(key, "_", ":")
}
