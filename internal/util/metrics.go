package util

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BlocksPushed tracks total number of blocks submitted to the fork
	// database via PushBlock.
	BlocksPushed prometheus.Counter

	// LinkedSetSize tracks the current size of the linked index.
	LinkedSetSize prometheus.Gauge

	// UnlinkedSetSize tracks the current size of the unlinked (orphan)
	// index.
	UnlinkedSetSize prometheus.Gauge

	// HeadHeight tracks the block number of the current head.
	HeadHeight prometheus.Gauge

	// Evictions tracks total number of items dropped by the sliding-window
	// eviction.
	Evictions prometheus.Counter

	// OrphanPromotions tracks total number of orphaned blocks promoted into
	// the linked index after their parent arrived.
	OrphanPromotions prometheus.Counter

	// RPCErrors tracks total number of RPC errors by error type.
	RPCErrors prometheus.CounterVec

	// BackfillDuration tracks time to backfill a batch of blocks.
	BackfillDuration prometheus.Histogram

	// IngestLagBlocks tracks number of blocks behind the network head the
	// live-tail coordinator is currently observing.
	IngestLagBlocks prometheus.Gauge

	logger *slog.Logger
)

// Init initializes all Prometheus metrics.
func Init() error {
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("initializing prometheus metrics")

	BlocksPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forkdb_blocks_pushed_total",
		Help: "Total number of blocks submitted to the fork database",
	})

	LinkedSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forkdb_linked_set_size",
		Help: "Current number of items in the linked index",
	})

	UnlinkedSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forkdb_unlinked_set_size",
		Help: "Current number of items staged in the unlinked (orphan) index",
	})

	HeadHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forkdb_head_height",
		Help: "Block number of the current head",
	})

	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forkdb_evictions_total",
		Help: "Total number of items dropped by sliding-window eviction",
	})

	OrphanPromotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forkdb_orphan_promotions_total",
		Help: "Total number of orphaned blocks promoted after their parent arrived",
	})

	RPCErrors = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkdb_rpc_errors_total",
			Help: "Total number of RPC errors by type",
		},
		[]string{"error_type"},
	)

	BackfillDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forkdb_backfill_duration_seconds",
		Help:    "Time to backfill a batch of blocks (seconds)",
		Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	IngestLagBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forkdb_ingest_lag_blocks",
		Help: "Number of blocks behind network head the live-tail coordinator observes",
	})

	logger.Info("prometheus metrics initialized successfully")
	return nil
}

// RecordBlockPushed increments the blocks-pushed counter.
func RecordBlockPushed() {
	if BlocksPushed == nil {
		return
	}
	BlocksPushed.Inc()
}

// SetLinkedSetSize records the current linked-index size.
func SetLinkedSetSize(n float64) {
	if LinkedSetSize == nil {
		return
	}
	LinkedSetSize.Set(n)
}

// SetUnlinkedSetSize records the current unlinked-index size.
func SetUnlinkedSetSize(n float64) {
	if UnlinkedSetSize == nil {
		return
	}
	UnlinkedSetSize.Set(n)
}

// SetHeadHeight records the current head's block number.
func SetHeadHeight(n float64) {
	if HeadHeight == nil {
		return
	}
	HeadHeight.Set(n)
}

// RecordEvictions increments the eviction counter by n.
func RecordEvictions(n int) {
	if Evictions == nil || n <= 0 {
		return
	}
	Evictions.Add(float64(n))
}

// RecordOrphanPromotion increments the orphan-promotion counter.
func RecordOrphanPromotion() {
	if OrphanPromotions == nil {
		return
	}
	OrphanPromotions.Inc()
}

// RecordRPCError increments the RPC errors counter for a specific error
// type. errorType should be one of: network, rate_limit, invalid_param,
// timeout, other.
func RecordRPCError(errorType string) {
	switch errorType {
	case "network", "rate_limit", "invalid_param", "timeout", "other":
		RPCErrors.WithLabelValues(errorType).Inc()
	default:
		if logger != nil {
			logger.Warn("unknown RPC error type", "error_type", errorType)
		}
		RPCErrors.WithLabelValues("other").Inc()
	}
}

// RecordBackfillDuration records the duration of a backfill batch in
// seconds.
func RecordBackfillDuration(seconds float64) {
	if BackfillDuration == nil || seconds < 0 {
		return
	}
	BackfillDuration.Observe(seconds)
}

// SetIngestLagBlocks records the current live-tail lag in blocks.
func SetIngestLagBlocks(lag float64) {
	if IngestLagBlocks == nil {
		return
	}
	IngestLagBlocks.Set(lag)
}

// GetMetricsPort returns the configured metrics port from environment.
func GetMetricsPort() string {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		port = "9090"
	}
	return port
}

// GetMetricsEndpoint returns the configured metrics endpoint from
// environment.
func GetMetricsEndpoint() string {
	endpoint := os.Getenv("METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = "/metrics"
	}
	return endpoint
}

// StartMetricsServer starts an HTTP server serving Prometheus metrics. This
// blocks, so call it in a goroutine from main.
func StartMetricsServer() error {
	port := GetMetricsPort()
	endpoint := GetMetricsEndpoint()

	http.Handle(endpoint, promhttp.Handler())

	addr := fmt.Sprintf(":%s", port)
	if logger != nil {
		logger.Info("starting metrics server", "address", addr, "endpoint", endpoint)
	}

	if err := http.ListenAndServe(addr, nil); err != nil {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}
