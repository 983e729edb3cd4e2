package service

import (
	"errors"
	"fmt"

	"lanwatch/internal/domain"
	"lanwatch/internal/metrics"
)

// storageError wraps err with the operation name and marks it as a storage
// failure unless it already carries a domain meaning
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%s: %w", op, err)

	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDuplicateKey):
		return err
	case errors.Is(err, domain.ErrStorageUnavailable):
	default:
		err = fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	metrics.StoreErrorCount.WithLabelValues(op).Inc()
	return err
}
