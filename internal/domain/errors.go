package domain

import "errors"

var (
	// ErrInvalidAddress is returned when an address cannot be parsed, or is
	// not in the address family the classifier was configured with.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidStatus is returned for status strings outside the Status enum.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrDuplicateKey is returned by a store when an insert collides with an
	// existing address. The reconciler converts it into an update.
	ErrDuplicateKey = errors.New("device already exists")

	// ErrNotFound is returned by a store when no device has the given address.
	ErrNotFound = errors.New("device not found")

	// ErrStorageUnavailable marks transient storage failures (timeouts,
	// connection loss). Callers may retry the same batch.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTransport marks a failed agent-to-collector submission.
	ErrTransport = errors.New("report transport failure")
)
