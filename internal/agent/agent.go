package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/adapter"
	"lanwatch/internal/domain"
	"lanwatch/internal/metrics"
	"lanwatch/internal/policy"
)

// Defaults applied when Config leaves a field zero
const (
	DefaultInterval    = 60 * time.Second
	DefaultScanTimeout = 5 * time.Minute
)

// ErrEmptyScan is returned by Cycle when no host responded
var ErrEmptyScan = errors.New("scan found no hosts")

// ScanSource enumerates responding hosts for a target
type ScanSource interface {
	Scan(ctx context.Context, target string) (iter.Seq[adapter.Host], error)
}

// Reporter delivers one batch of observations to the collector
type Reporter interface {
	Report(ctx context.Context, batch []domain.Observation) error
}

// Config holds the per-target agent settings
type Config struct {
	Target      string
	Interval    time.Duration
	ScanTimeout time.Duration

	// Classifier is optional. When it is configured the agent asserts a
	// status for each host; otherwise the collector classifies.
	Classifier *policy.Classifier
}

// Agent scans one target on a fixed delay and reports what it finds
type Agent struct {
	cfg      Config
	scanner  ScanSource
	reporter Reporter
	log      zerolog.Logger
}

// New creates an agent for cfg.Target
func New(cfg Config, scanner ScanSource, reporter Reporter, log zerolog.Logger) *Agent {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}

	return &Agent{
		cfg:      cfg,
		scanner:  scanner,
		reporter: reporter,
		log:      log.With().Str("target", cfg.Target).Logger(),
	}
}

// Target returns the scan target
func (a *Agent) Target() string {
	return a.cfg.Target
}

// Run repeats scan cycles until ctx is cancelled. Cancellation is observed
// between cycles; a cycle in progress runs to completion.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info().Dur("interval", a.cfg.Interval).Msg("Starting scan agent")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("Stopping scan agent")
			return ctx.Err()
		case <-timer.C:
		}

		if err := a.Cycle(ctx); err != nil && !errors.Is(err, ErrEmptyScan) {
			a.log.Error().Err(err).Msg("Scan cycle failed")
		}

		timer.Reset(a.cfg.Interval)
	}
}

// Cycle performs one scan and submits the result
func (a *Agent) Cycle(ctx context.Context) error {
	detached := context.WithoutCancel(ctx)

	scanCtx, cancel := context.WithTimeout(detached, a.cfg.ScanTimeout)
	defer cancel()

	start := time.Now()
	hosts, err := a.scanner.Scan(scanCtx, a.cfg.Target)
	if err != nil {
		metrics.AgentCycleCounter.WithLabelValues(a.cfg.Target, "scan_error").Inc()
		return fmt.Errorf("scan %s: %w", a.cfg.Target, err)
	}

	batch := a.observations(hosts)
	metrics.ScanRunTimeSummary.WithLabelValues(a.cfg.Target).Observe(time.Since(start).Seconds())
	metrics.HostsDiscovered.WithLabelValues(a.cfg.Target).Set(float64(len(batch)))

	if len(batch) == 0 {
		a.log.Info().Msg("No hosts found, skipping report")
		metrics.AgentCycleCounter.WithLabelValues(a.cfg.Target, "empty").Inc()
		return ErrEmptyScan
	}

	if err := a.reporter.Report(detached, batch); err != nil {
		metrics.AgentCycleCounter.WithLabelValues(a.cfg.Target, "submit_error").Inc()
		return fmt.Errorf("report %d observations: %w", len(batch), err)
	}

	metrics.AgentCycleCounter.WithLabelValues(a.cfg.Target, "reported").Inc()
	a.log.Info().Int("hosts", len(batch)).Msg("Reported scan results")
	return nil
}

// observations converts scanned hosts into a report batch
func (a *Agent) observations(hosts iter.Seq[adapter.Host]) []domain.Observation {
	batch := []domain.Observation{}

	for host := range hosts {
		address, err := domain.NormalizeAddress(host.Address)
		if err != nil {
			a.log.Warn().Str("address", host.Address).Msg("Skipping host with unparseable address")
			continue
		}

		obs := domain.Observation{
			Address:     address,
			DisplayName: host.Hostname,
			Location:    domain.DefaultLocation,
			LinkedArea:  domain.DefaultLinkedArea,
		}
		if obs.DisplayName == "" {
			obs.DisplayName = domain.DefaultDisplayName(address)
		}

		if a.cfg.Classifier.Configured() {
			status, err := a.cfg.Classifier.Classify(address)
			if err != nil {
				a.log.Debug().Err(err).Str("address", address).Msg("Leaving status to the collector")
			} else {
				obs.Status = string(status)
			}
		}

		batch = append(batch, obs)
	}

	return batch
}
