// Package metrics provides the Prometheus registry and exposition endpoint for feedpager.
// All metrics are defined in their respective packages (cache, queue, loading, retry,
// httpsource, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by feedpager.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP mux serving /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// Serve exposes Handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - feedpager_cache_hits_total{layer} (Counter): Item hits by layer (memory, database)
//   - feedpager_cache_misses_total (Counter): Loads that had to go to the remote source
//   - feedpager_cache_evictions_total (Counter): Items evicted by max size
//   - feedpager_cache_items (Gauge): Items currently in the memory layer
//   - feedpager_cache_inflight_skips_total (Counter): Loads skipped because the same params were in flight
//   - feedpager_cache_errors_total{operation} (Counter): Absorbed persistence errors
//
// Queue Metrics (pkg/queue):
//   - feedpager_queue_depth{direction} (Gauge): Queued load requests per direction
//   - feedpager_queue_jumps_total{direction} (Counter): Jump requests that cleared a queue
//   - feedpager_pending_jobs (Gauge): Loads in progress
//
// Loading Metrics (pkg/loading):
//   - feedpager_loads_total{direction, outcome} (Counter): Loads by outcome (success, empty, skipped, error, ignored)
//   - feedpager_load_duration_seconds{direction} (Histogram): Load duration
//   - feedpager_loads_in_flight{direction} (Gauge): Loads currently running
//
// Retry Metrics (pkg/retry):
//   - feedpager_retries_total{direction} (Counter): Retry attempts
//   - feedpager_retry_backoff_seconds{direction} (Histogram): Backoff duration
//   - feedpager_retry_exhausted_total{direction} (Counter): Loads that exhausted max retries
//
// Source Metrics (pkg/source/httpsource):
//   - feedpager_source_requests_total{direction, status} (Counter): Page requests by HTTP status
//   - feedpager_source_request_duration_seconds{direction} (Histogram): Page request duration
//   - feedpager_source_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - feedpager_source_errors_remaining (Gauge): Error budget reported by the page source
//   - feedpager_rate_limit_blocks_total (Counter): Fetches blocked at critical budget
//   - feedpager_rate_limit_throttles_total (Counter): Fetches throttled at warning budget
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(feedpager_cache_hits_total[5m])) /
//   (sum(rate(feedpager_cache_hits_total[5m])) + sum(rate(feedpager_cache_misses_total[5m])))
//
//   # Failed Loads
//   sum by (direction) (rate(feedpager_loads_total{outcome="error"}[5m]))
//
//   # Error Budget Status
//   feedpager_source_errors_remaining < 20
//
//   # P95 Page Request Latency
//   histogram_quantile(0.95, rate(feedpager_source_request_duration_seconds_bucket[5m]))
