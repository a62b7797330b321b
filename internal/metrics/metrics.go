// Package metrics exposes Prometheus instrumentation for the queue.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arris_requests_enqueued_total",
		Help: "The total number of requests admitted to the queue",
	}, []string{"priority"})

	RequestsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arris_requests_completed_total",
		Help: "The total number of processed requests",
	}, []string{"priority", "status"}) // status: completed, failed, swept

	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arris_processing_duration_seconds",
		Help:    "Duration of insight generation per request.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"priority"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arris_queue_depth",
		Help: "Current number of queued items per lane.",
	}, []string{"priority"})

	ProcessingCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arris_processing_count",
		Help: "Current number of in-flight requests.",
	})
)

// StartServer exposes /metrics on addr. Returns the server so the
// daemon can shut it down.
func StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server failed: %v", err)
		}
	}()
	return srv
}
