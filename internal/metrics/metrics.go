package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// DefaultAgentEndpoint is where a standalone agent exposes its metrics
const DefaultAgentEndpoint = "0.0.0.0:9091"

var (
	ReportsCounter   *prometheus.CounterVec
	ReconcileCounter *prometheus.CounterVec
	StoreErrorCount  *prometheus.CounterVec

	HubSubscribers   prometheus.Gauge
	HubDroppedCount  prometheus.Counter
	BroadcastCounter *prometheus.CounterVec

	AgentCycleCounter  *prometheus.CounterVec
	ScanRunTimeSummary *prometheus.SummaryVec
	HostsDiscovered    *prometheus.GaugeVec
)

func init() {
	ReportsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanwatch_reports_received",
			Help: "A counter metric to measure the total count of observation batches received",
		},
		[]string{"result"}, // ok, partial, error
	)

	ReconcileCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanwatch_reconcile_outcomes",
			Help: "A counter metric to measure reconciled observations by outcome",
		},
		[]string{"kind"},
	)

	StoreErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanwatch_store_error_count",
			Help: "A counter metric to measure the total count of device store errors",
		},
		[]string{"operation"},
	)

	HubSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanwatch_hub_subscribers",
			Help: "The number of connected real-time subscribers",
		},
	)

	HubDroppedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanwatch_hub_dropped_snapshots",
			Help: "A counter metric to measure snapshots discarded from full subscriber queues",
		},
	)

	BroadcastCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanwatch_hub_broadcasts",
			Help: "A counter metric to measure snapshot broadcasts",
		},
		[]string{"result"},
	)

	AgentCycleCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanwatch_agent_cycles",
			Help: "A counter metric to measure scan cycles by target and result",
		},
		[]string{"target", "result"}, // reported, empty, scan_error, submit_error
	)

	ScanRunTimeSummary = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "lanwatch_scan_duration_seconds",
			Help: "A summary metric to measure the time spent in each network scan",
		},
		[]string{"target"},
	)

	HostsDiscovered = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lanwatch_hosts_discovered",
			Help: "The number of hosts found by the last scan of a target",
		},
		[]string{"target"},
	)
}

// ListenAndServe exposes /metrics on addr in the background. The returned
// server can be shut down by the caller.
func ListenAndServe(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics endpoint stopped")
		}
	}()

	return server
}
