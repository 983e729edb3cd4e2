package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
	"lanwatch/internal/metrics"
)

// DefaultPublishTimeout bounds the snapshot broadcast that follows a report
const DefaultPublishTimeout = 10 * time.Second

// Publisher pushes the current device snapshot to subscribers
type Publisher interface {
	Publish(ctx context.Context) error
}

// ReportService handles observation batches submitted by scan agents
type ReportService struct {
	reconciler *Reconciler
	publisher  Publisher
	log        zerolog.Logger
}

// NewReportService creates a report service. publisher may be nil.
func NewReportService(reconciler *Reconciler, publisher Publisher, log zerolog.Logger) *ReportService {
	return &ReportService{
		reconciler: reconciler,
		publisher:  publisher,
		log:        log,
	}
}

// Submit reconciles batch and then broadcasts a snapshot. The broadcast
// happens after every processed report, including empty ones, and after a
// failed report that still applied some observations.
func (s *ReportService) Submit(ctx context.Context, batch []domain.Observation) (*domain.ChangeSet, error) {
	cs, err := s.reconciler.Reconcile(ctx, batch)

	switch {
	case err == nil:
		metrics.ReportsCounter.WithLabelValues("ok").Inc()
	case cs.Applied() > 0:
		metrics.ReportsCounter.WithLabelValues("partial").Inc()
	default:
		metrics.ReportsCounter.WithLabelValues("error").Inc()
		return cs, err
	}

	s.publish(ctx)
	return cs, err
}

// publish is detached from the caller so a disconnecting agent does not
// suppress the broadcast for everyone else
func (s *ReportService) publish(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultPublishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to broadcast snapshot")
	}
}
