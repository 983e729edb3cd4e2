package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"lanwatch/internal/domain"
)

func TestStorageError(t *testing.T) {
	assert.NoError(t, storageError("get device", nil))

	err := storageError("get device", errors.New("disk I/O error"))
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "get device")

	err = storageError("delete device", domain.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrStorageUnavailable)

	err = storageError("create device", domain.ErrDuplicateKey)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	assert.NotErrorIs(t, err, domain.ErrStorageUnavailable)

	err = storageError("list devices", domain.ErrStorageUnavailable)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, "list devices: "+domain.ErrStorageUnavailable.Error(), err.Error())
}
