package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeSetRecord(t *testing.T) {
	t.Run("counts each kind", func(t *testing.T) {
		cs := NewChangeSet()
		cs.Record("10.0.0.1", ChangeCreated, nil)
		cs.Record("10.0.0.2", ChangeUpdated, nil)
		cs.Record("bogus", ChangeInvalid, ErrInvalidAddress)
		cs.Record("10.0.0.3", ChangeFailed, ErrStorageUnavailable)

		assert.Equal(t, 1, cs.Created)
		assert.Equal(t, 1, cs.Updated)
		assert.Equal(t, 1, cs.Invalid)
		assert.Equal(t, 1, cs.Failed)
		assert.Equal(t, 2, cs.Applied())
		assert.Len(t, cs.Changes, 4)
	})

	t.Run("duplicate address keeps one entry", func(t *testing.T) {
		cs := NewChangeSet()
		cs.Record("10.0.0.1", ChangeUpdated, nil)
		cs.Record("10.0.0.2", ChangeUpdated, nil)
		cs.Record("10.0.0.1", ChangeUpdated, nil)

		require.Len(t, cs.Changes, 2)
		assert.Equal(t, "10.0.0.1", cs.Changes[0].Address)
		assert.Equal(t, 2, cs.Updated)
	})

	t.Run("created is sticky within a batch", func(t *testing.T) {
		cs := NewChangeSet()
		cs.Record("10.0.0.1", ChangeCreated, nil)
		cs.Record("10.0.0.1", ChangeUpdated, nil)

		require.Len(t, cs.Changes, 1)
		assert.Equal(t, ChangeCreated, cs.Changes[0].Kind)
		assert.Equal(t, 1, cs.Created)
		assert.Equal(t, 0, cs.Updated)
	})

	t.Run("later failure keeps the applied outcome", func(t *testing.T) {
		cs := NewChangeSet()
		cs.Record("10.0.0.1", ChangeCreated, nil)
		cs.Record("10.0.0.1", ChangeFailed, ErrStorageUnavailable)

		require.Len(t, cs.Changes, 2)
		assert.Equal(t, ChangeCreated, cs.Changes[0].Kind)
		assert.Equal(t, ChangeFailed, cs.Changes[1].Kind)
		assert.Equal(t, 1, cs.Created)
		assert.Equal(t, 1, cs.Failed)
		assert.Equal(t, 1, cs.Applied())
	})

	t.Run("failure after invalid replaces nothing applied", func(t *testing.T) {
		cs := NewChangeSet()
		cs.Record("10.0.0.1", ChangeFailed, ErrStorageUnavailable)
		cs.Record("10.0.0.1", ChangeFailed, ErrStorageUnavailable)

		require.Len(t, cs.Changes, 1)
		assert.Equal(t, 1, cs.Failed)
	})

	t.Run("invalid does not replace an applied outcome", func(t *testing.T) {
		cs := NewChangeSet()
		cs.Record("10.0.0.1", ChangeCreated, nil)
		cs.Record("10.0.0.1", ChangeInvalid, ErrInvalidStatus)
		cs.Record("10.0.0.1", ChangeUpdated, nil)

		require.Len(t, cs.Changes, 2)
		assert.Equal(t, ChangeCreated, cs.Changes[0].Kind)
		assert.Equal(t, ChangeInvalid, cs.Changes[1].Kind)
		assert.Equal(t, 1, cs.Created)
		assert.Equal(t, 1, cs.Invalid)
	})

	t.Run("zero value is usable", func(t *testing.T) {
		var cs ChangeSet
		cs.Record("10.0.0.1", ChangeCreated, nil)
		assert.Equal(t, 1, cs.Created)
	})
}

func TestChangeSetErr(t *testing.T) {
	cs := NewChangeSet()
	cs.Record("10.0.0.1", ChangeCreated, nil)
	assert.NoError(t, cs.Err())
	assert.True(t, NewChangeSet().Empty())

	cs.Record("bogus", ChangeInvalid, ErrInvalidAddress)
	cs.Record("10.0.0.2", ChangeInvalid, ErrInvalidStatus)

	err := cs.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAddress))
	assert.True(t, errors.Is(err, ErrInvalidStatus))
	assert.Contains(t, err.Error(), "bogus")
	assert.Equal(t, "created=1 updated=0 invalid=2 failed=0", cs.Summary())
}

func TestObservationToDevice(t *testing.T) {
	now := time.Now()

	t.Run("fills defaults", func(t *testing.T) {
		d := Observation{Address: "10.0.0.5"}.ToDevice("10.0.0.5", StatusBlocked, now)
		assert.Equal(t, "Device-5", d.DisplayName)
		assert.Equal(t, DefaultLocation, d.Location)
		assert.Equal(t, DefaultLinkedArea, d.LinkedArea)
		assert.Equal(t, StatusBlocked, d.Status)
	})

	t.Run("keeps supplied fields", func(t *testing.T) {
		obs := Observation{Address: "10.0.0.5", DisplayName: "nas", Location: "Rack 2", LinkedArea: "Lab"}
		d := obs.ToDevice("10.0.0.5", StatusAllowed, now)
		assert.Equal(t, "nas", d.DisplayName)
		assert.Equal(t, "Rack 2", d.Location)
		assert.Equal(t, "Lab", d.LinkedArea)
	})
}

func TestObservationSuppliedStatus(t *testing.T) {
	st, ok, err := Observation{Address: "10.0.0.5"}.SuppliedStatus()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, st)

	st, ok, err = Observation{Address: "10.0.0.5", Status: "maintenance"}.SuppliedStatus()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StatusMaintenance, st)

	_, ok, err = Observation{Address: "10.0.0.5", Status: "Lost"}.SuppliedStatus()
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
