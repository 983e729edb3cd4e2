package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
	"lanwatch/internal/policy"
	"lanwatch/internal/repository"
)

// DeviceInput is a manually entered device
type DeviceInput struct {
	Address     string   `json:"address"`
	DisplayName string   `json:"displayName,omitempty"`
	Location    string   `json:"location,omitempty"`
	LinkedArea  string   `json:"linkedArea,omitempty"`
	Status      string   `json:"status,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Pinned      bool     `json:"pinned,omitempty"`
}

// DevicePatch is a partial manual edit; nil fields are left unchanged
type DevicePatch struct {
	DisplayName *string  `json:"displayName,omitempty"`
	Location    *string  `json:"location,omitempty"`
	LinkedArea  *string  `json:"linkedArea,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Pinned      *bool    `json:"pinned,omitempty"`
}

// DeviceService manages operator driven device changes and searches
type DeviceService struct {
	repo       repository.DeviceStore
	classifier *policy.Classifier
	publisher  Publisher
	timeout    time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewDeviceService creates a device service. publisher may be nil.
func NewDeviceService(repo repository.DeviceStore, classifier *policy.Classifier, publisher Publisher, log zerolog.Logger) *DeviceService {
	return &DeviceService{
		repo:       repo,
		classifier: classifier,
		publisher:  publisher,
		timeout:    DefaultStoreTimeout,
		now:        time.Now,
		log:        log,
	}
}

// List returns devices matching query (case-insensitive substring over the
// descriptive fields), most recently seen first. An empty query returns all.
func (s *DeviceService) List(ctx context.Context, query string) ([]domain.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	devices, err := s.repo.ListDevices(ctx)
	if err != nil {
		return nil, storageError("list devices", err)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return devices, nil
	}

	matched := make([]domain.Device, 0, len(devices))
	for i := range devices {
		if devices[i].Matches(query) {
			matched = append(matched, devices[i])
		}
	}
	return matched, nil
}

// Get returns one device or domain.ErrNotFound
func (s *DeviceService) Get(ctx context.Context, address string) (*domain.Device, error) {
	address, err := domain.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	d, err := s.repo.GetDevice(ctx, address)
	if err != nil {
		return nil, storageError("get device", err)
	}
	if d == nil {
		return nil, fmt.Errorf("%s: %w", address, domain.ErrNotFound)
	}
	return d, nil
}

// Create adds a manually entered device. The status defaults to the
// classifier verdict.
func (s *DeviceService) Create(ctx context.Context, input DeviceInput) (*domain.Device, error) {
	d, err := s.create(ctx, input, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("address", d.Address).Str("status", string(d.Status)).Msg("Device created")
	s.publish(ctx)
	return d, nil
}

// ImportResult summarizes a bulk import
type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Import inserts devices that are not yet in the inventory. Existing
// addresses are skipped so imports never overwrite operator edits. A storage
// failure aborts the import; per-record validation errors do not.
func (s *DeviceService) Import(ctx context.Context, devices []domain.Device) (*ImportResult, error) {
	result := &ImportResult{}
	now := s.now().UTC()

	defer func() {
		if result.Created > 0 {
			s.publish(ctx)
		}
	}()

	for _, imported := range devices {
		address, err := domain.NormalizeAddress(imported.Address)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		existing, err := s.Get(ctx, address)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return result, err
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		seenAt := now
		if !imported.LastSeenAt.IsZero() {
			seenAt = imported.LastSeenAt.UTC()
		}
		_, err = s.create(ctx, DeviceInput{
			Address:     address,
			DisplayName: imported.DisplayName,
			Location:    imported.Location,
			LinkedArea:  imported.LinkedArea,
			Status:      string(imported.Status),
			Latitude:    imported.Latitude,
			Longitude:   imported.Longitude,
			Pinned:      imported.Pinned,
		}, seenAt)
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, domain.ErrStorageUnavailable):
			return result, err
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", address, err))
		}
	}

	s.log.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("Devices imported")
	return result, nil
}

func (s *DeviceService) create(ctx context.Context, input DeviceInput, seenAt time.Time) (*domain.Device, error) {
	address, err := domain.NormalizeAddress(input.Address)
	if err != nil {
		return nil, err
	}

	var status domain.Status
	if input.Status != "" {
		status, err = domain.ParseStatus(input.Status)
	} else {
		status, err = s.classifier.Classify(address)
	}
	if err != nil {
		return nil, err
	}

	d := domain.NewDevice(address, status, seenAt)
	d.DisplayName = input.DisplayName
	d.Location = input.Location
	d.LinkedArea = input.LinkedArea
	d.Latitude = input.Latitude
	d.Longitude = input.Longitude
	d.Pinned = input.Pinned
	d.ApplyDefaults()

	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.repo.InsertDevice(ctx, d)
	}); err != nil {
		return nil, storageError("create device", err)
	}
	return d, nil
}

// Update applies a partial edit to an existing device
func (s *DeviceService) Update(ctx context.Context, address string, patch DevicePatch) (*domain.Device, error) {
	d, err := s.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		d.DisplayName = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.Location != nil {
		d.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.LinkedArea != nil {
		d.LinkedArea = strings.TrimSpace(*patch.LinkedArea)
	}
	if patch.Status != nil {
		status, err := domain.ParseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		d.Status = status
	}
	if patch.Latitude != nil {
		d.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		d.Longitude = patch.Longitude
	}
	if patch.Pinned != nil {
		d.Pinned = *patch.Pinned
	}
	d.ApplyDefaults()

	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.repo.UpdateDevice(ctx, d)
	}); err != nil {
		return nil, storageError("update device", err)
	}

	s.log.Info().Str("address", d.Address).Msg("Device updated")
	s.publish(ctx)
	return d, nil
}

// Delete removes a device
func (s *DeviceService) Delete(ctx context.Context, address string) error {
	address, err := domain.NormalizeAddress(address)
	if err != nil {
		return err
	}

	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.repo.DeleteDevice(ctx, address)
	}); err != nil {
		return storageError("delete device", err)
	}

	s.log.Info().Str("address", address).Msg("Device deleted")
	s.publish(ctx)
	return nil
}

// Ping checks the device store
func (s *DeviceService) Ping(ctx context.Context) error {
	return s.withTimeout(ctx, s.repo.Ping)
}

func (s *DeviceService) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

func (s *DeviceService) publish(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultPublishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to broadcast snapshot")
	}
}
