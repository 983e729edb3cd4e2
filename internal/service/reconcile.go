package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
	"lanwatch/internal/metrics"
	"lanwatch/internal/policy"
)

// DefaultStoreTimeout bounds each device store call made while reconciling
const DefaultStoreTimeout = 5 * time.Second

// ReconcileRepository defines the repository interface for reconciliation
type ReconcileRepository interface {
	GetDevice(ctx context.Context, address string) (*domain.Device, error)
	InsertDevice(ctx context.Context, device *domain.Device) error
	TouchDevice(ctx context.Context, address string, status domain.Status, seenAt time.Time) error
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithStoreTimeout sets the per-call store timeout
func WithStoreTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock overrides the time source used for lastSeenAt
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithLogger sets the reconciler logger
func WithLogger(log zerolog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.log = log
	}
}

// Reconciler merges observation batches into the device store
type Reconciler struct {
	repo       ReconcileRepository
	classifier *policy.Classifier
	timeout    time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewReconciler creates a reconciler. A nil classifier treats every address
// as Allowed.
func NewReconciler(repo ReconcileRepository, classifier *policy.Classifier, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		repo:       repo,
		classifier: classifier,
		timeout:    DefaultStoreTimeout,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies batch in order. Invalid observations are recorded and
// skipped. A storage failure stops the batch: the current and remaining
// observations are marked Failed and an error wrapping
// domain.ErrStorageUnavailable is returned together with the change set.
func (r *Reconciler) Reconcile(ctx context.Context, batch []domain.Observation) (*domain.ChangeSet, error) {
	cs := domain.NewChangeSet()
	if len(batch) == 0 {
		return cs, nil
	}
	defer recordOutcomes(cs)

	seenAt := r.now().UTC()

	for i, obs := range batch {
		address, status, err := r.validate(obs)
		if err != nil {
			r.log.Warn().Str("address", obs.Address).Err(err).Msg("Skipping invalid observation")
			cs.Record(obs.Address, domain.ChangeInvalid, err)
			continue
		}

		kind, err := r.apply(ctx, address, obs, status, seenAt)
		if err != nil {
			err = storageError("apply", err)
			cs.Record(address, domain.ChangeFailed, err)
			for _, rest := range batch[i+1:] {
				cs.Record(canonicalOrRaw(rest.Address), domain.ChangeFailed, domain.ErrStorageUnavailable)
			}
			r.log.Error().Err(err).
				Str("address", address).
				Int("applied", cs.Applied()).
				Int("failed", cs.Failed).
				Msg("Reconciliation aborted")
			return cs, fmt.Errorf("reconcile %s: %w", address, err)
		}
		cs.Record(address, kind, nil)
	}

	r.log.Info().
		Int("observations", len(batch)).
		Int("created", cs.Created).
		Int("updated", cs.Updated).
		Int("invalid", cs.Invalid).
		Msg("Reconciled batch")

	return cs, nil
}

// validate normalizes the address and resolves the status to apply
func (r *Reconciler) validate(obs domain.Observation) (string, domain.Status, error) {
	address, err := domain.NormalizeAddress(obs.Address)
	if err != nil {
		return "", "", err
	}

	status, supplied, err := obs.SuppliedStatus()
	if err != nil {
		return "", "", err
	}
	if !supplied {
		status, err = r.classifier.Classify(address)
		if err != nil {
			return "", "", err
		}
	}
	return address, status, nil
}

// apply performs the insert-or-update for one observation
func (r *Reconciler) apply(ctx context.Context, address string, obs domain.Observation, status domain.Status, seenAt time.Time) (domain.ChangeKind, error) {
	// A concurrent delete can remove the record between lookup and touch;
	// a second pass then recreates it.
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := r.getDevice(ctx, address)
		if err != nil {
			return "", fmt.Errorf("get device: %w", err)
		}

		if existing == nil {
			err := r.insertDevice(ctx, obs.ToDevice(address, status, seenAt))
			if err == nil {
				return domain.ChangeCreated, nil
			}
			if !errors.Is(err, domain.ErrDuplicateKey) {
				return "", fmt.Errorf("insert device: %w", err)
			}
			r.log.Debug().Str("address", address).Msg("Lost insert race, updating instead")
		}

		err = r.touchDevice(ctx, address, status, seenAt)
		if err == nil {
			return domain.ChangeUpdated, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("touch device: %w", err)
		}
	}
	return "", fmt.Errorf("device %s was modified concurrently", address)
}

func (r *Reconciler) getDevice(ctx context.Context, address string) (*domain.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.repo.GetDevice(ctx, address)
}

func (r *Reconciler) insertDevice(ctx context.Context, d *domain.Device) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.repo.InsertDevice(ctx, d)
}

func (r *Reconciler) touchDevice(ctx context.Context, address string, status domain.Status, seenAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.repo.TouchDevice(ctx, address, status, seenAt)
}

func canonicalOrRaw(address string) string {
	if canonical, err := domain.NormalizeAddress(address); err == nil {
		return canonical
	}
	return address
}

func recordOutcomes(cs *domain.ChangeSet) {
	for kind, n := range map[domain.ChangeKind]int{
		domain.ChangeCreated: cs.Created,
		domain.ChangeUpdated: cs.Updated,
		domain.ChangeInvalid: cs.Invalid,
		domain.ChangeFailed:  cs.Failed,
	} {
		if n > 0 {
			metrics.ReconcileCounter.WithLabelValues(string(kind)).Add(float64(n))
		}
	}
}
