// Package metrics exposes prometheus instrumentation for the update pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koalasec/photon-sync/internal/logger"
)

var (
	// UpdateCycles counts completed update cycles by outcome.
	UpdateCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photon_sync_update_cycles_total",
			Help: "Update cycles by outcome (succeeded, skipped, failed).",
		},
		[]string{"outcome"},
	)

	// DownloadedBytes counts bytes fetched from the mirror.
	DownloadedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "photon_sync_downloaded_bytes_total",
			Help: "Total archive bytes downloaded.",
		},
	)

	// DownloadAttempts counts fetch attempts, including retries.
	DownloadAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "photon_sync_download_attempts_total",
			Help: "Download attempts including retries.",
		},
	)

	// LastSuccessTimestamp is the unix time of the last successful cycle.
	LastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "photon_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful update cycle.",
		},
	)

	// SnapshotSizeBytes is the size of the active generation.
	SnapshotSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "photon_sync_snapshot_size_bytes",
			Help: "Size of the current dataset generation on disk.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		UpdateCycles,
		DownloadedBytes,
		DownloadAttempts,
		LastSuccessTimestamp,
		SnapshotSizeBytes,
	)
}

// RecordSuccess updates the success gauges after a completed cycle.
func RecordSuccess(when time.Time, snapshotSize int64) {
	UpdateCycles.WithLabelValues("succeeded").Inc()
	LastSuccessTimestamp.Set(float64(when.Unix()))
	if snapshotSize > 0 {
		SnapshotSizeBytes.Set(float64(snapshotSize))
	}
}

// Serve exposes /metrics on addr in a background goroutine. An empty addr
// disables the endpoint.
func Serve(addr string, log logger.Logger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Infof("serving metrics on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server stopped: %v", err)
		}
	}()
}
