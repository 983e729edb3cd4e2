// Package storetest holds the behavioural checks every DeviceStore backend
// must pass. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanwatch/internal/domain"
	"lanwatch/internal/repository"
)

// Factory returns a fresh, empty store. The store is closed by the caller's
// t.Cleanup if needed.
type Factory func(t *testing.T) repository.DeviceStore

// base is truncated to the second so every backend round-trips it exactly
var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Run executes the conformance suite against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("DuplicateInsert", func(t *testing.T) { testDuplicateInsert(t, newStore(t)) })
	t.Run("TouchMonotonic", func(t *testing.T) { testTouchMonotonic(t, newStore(t)) })
	t.Run("TouchPinned", func(t *testing.T) { testTouchPinned(t, newStore(t)) })
	t.Run("TouchMissing", func(t *testing.T) { testTouchMissing(t, newStore(t)) })
	t.Run("UpdatePreservesCreatedAt", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ListOrder", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("ConcurrentInsert", func(t *testing.T) { testConcurrentInsert(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func newDevice(address string) *domain.Device {
	return domain.NewDevice(address, domain.StatusAllowed, base)
}

func testInsertAndGet(t *testing.T, store repository.DeviceStore) {
	ctx := context.Background()
	lat, lon := 12.0, -7.5
	d := newDevice("192.168.1.42")
	d.Latitude, d.Longitude = &lat, &lon

	require.NoError(t, store.InsertDevice(ctx, d))

	got, err := store.GetDevice(ctx, "192.168.1.42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Device-42", got.DisplayName)
	assert.Equal(t, domain.DefaultLocation, got.Location)
	assert.Equal(t, domain.DefaultLinkedArea, got.LinkedArea)
	assert.Equal(t, domain.StatusAllowed, got.Status)
	assert.True(t, base.Equal(got.LastSeenAt), "last seen %v", got.LastSeenAt)
	assert.True(t, base.Equal(got.CreatedAt), "created %v", got.CreatedAt)
	require.NotNil(t, got.Latitude)
	require.NotNil(t, got.Longitude)
	assert.Equal(t, 12.0, *got.Latitude)
	assert.Equal(t, -7.5, *got.Longitude)
	assert.False(t, got.Pinned)
}

func testGetMissing(t *testing.T, store repository.DeviceStore) {
	got, err := store.GetDevice(context.Background(), "10.9.9.9")
	require.NoError(t, err)
	assert.Nil(t, got)

	devices, err := store.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func testDuplicateInsert(t *testing.T, store repository.DeviceStore) {
	ctx := context.Background()
	require.NoError(t, store.InsertDevice(ctx, newDevice("10.0.0.5")))

	err := store.InsertDevice(ctx, newDevice("10.0.0.5"))
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func testTouchMonotonic(t *testing.T, store repository.DeviceStore) {
	ctx := context.Background()
	lat := 12.0
	d := newDevice("10.0.0.5")
	d.Latitude = &lat
	d.DisplayName = "nas"
	require.NoError(t, store.InsertDevice(ctx, d))

	later := base.Add(time.Minute)
	require.NoError(t, store.TouchDevice(ctx, "10.0.0.5", domain.StatusBlocked, later))
	require.NoError(t, store.TouchDevice(ctx, "10.0.0.5", domain.StatusBlocked, base.Add(-time.Hour)))

	got, err := store.GetDevice(ctx, "10.0.0.5")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusBlocked, got.Status)
	assert.True(t, later.Equal(got.LastSeenAt), "last seen moved to %v", got.LastSeenAt)
	assert.Equal(t, "nas", got.DisplayName)
	require.NotNil(t, got.Latitude)
	assert.Equal(t, 12.0, *got.Latitude)
}

func testTouchPinned(t *testing.T, store repository.DeviceStore) {
	ctx := context.Background()
	d := domain.NewDevice("10.0.0.6", domain.StatusMaintenance, base)
	d.Pinned = true
	require.NoError(t, store.InsertDevice(ctx, d))

	later := base.Add(time.Minute)
	require.NoError(t, store.TouchDevice(ctx, "10.0.0.6", domain.StatusBlocked, later))

	got, err := store.GetDevice(ctx, "10.0.0.6")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusMaintenance, got.Status)
	assert.True(t, later.Equal(got.LastSeenAt))
}

func testTouchMissing(t *testing.T, store repository.DeviceStore) {
	err := store.TouchDevice(context.Background(), "10.0.0.7", domain.StatusAllowed, base)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testUpdate(t *testing.T, store repository.DeviceStore) {
	ctx := context.Background()
	require.NoError(t, store.InsertDevice(ctx, newDevice("10.0.0.8")))

	edited := newDevice("10.0.0.8")
	edited.DisplayName = "Lobby Printer"
	edited.Location = "Floor 1"
	edited.Status = domain.StatusMaintenance
	edited.Pinned = true
	edited.CreatedAt = base.Add(time.Hour)
	require.NoError(t, store.UpdateDevice(ctx, edited))

	got, err := store.GetDevice(ctx, "10.0.0.8")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Lobby Printer", got.DisplayName)
	assert.Equal(t, "Floor 1", got.Location)
	assert.Equal(t, domain.StatusMaintenance, got.Status)
	assert.True(t, got.Pinned)
	assert.True(t, base.Equal(got.CreatedAt), "created at changed to %v", got.CreatedAt)

	err = store.UpdateDevice(ctx, newDevice("10.0.0.99"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDelete(t *testing.T, store repository.DeviceStore) {
	ctx := context.Background()
	require.NoError(t, store.InsertDevice(ctx, newDevice("10.0.0.9")))
	require.NoError(t, store.DeleteDevice(ctx, "10.0.0.9"))

	got, err := store.GetDevice(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, store.DeleteDevice(ctx, "10.0.0.9"), domain.ErrNotFound)
}

func testListOrder(t *testing.T, store repository.DeviceStore) {
	ctx := context.Background()
	for i, addr := range []string{"10.0.1.1", "10.0.1.2", "10.0.1.3"} {
		d := newDevice(addr)
		d.LastSeenAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.InsertDevice(ctx, d))
	}

	devices, err := store.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.Equal(t, "10.0.1.3", devices[0].Address)
	assert.Equal(t, "10.0.1.2", devices[1].Address)
	assert.Equal(t, "10.0.1.1", devices[2].Address)
}

func testConcurrentInsert(t *testing.T, store repository.DeviceStore) {
	ctx := context.Background()
	const workers = 8

	var (
		wg         sync.WaitGroup
		inserted   atomic.Int32
		duplicates atomic.Int32
		others     = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := newDevice("10.0.2.1")
			d.DisplayName = fmt.Sprintf("worker-%d", i)
			err := store.InsertDevice(ctx, d)
			switch {
			case err == nil:
				inserted.Add(1)
			case errors.Is(err, domain.ErrDuplicateKey):
				duplicates.Add(1)
			default:
				others <- err
			}
		}(i)
	}
	wg.Wait()
	close(others)

	for err := range others {
		t.Errorf("unexpected insert error: %v", err)
	}
	assert.Equal(t, int32(1), inserted.Load())
	assert.Equal(t, int32(workers-1), duplicates.Load())

	devices, err := store.ListDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}
