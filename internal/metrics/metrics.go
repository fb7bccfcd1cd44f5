// Package metrics holds the Prometheus collectors shared by the HTTP layer,
// the page cache and the storage backends. They live in a standalone package
// to avoid import cycles.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadwiki_http_requests_total",
		Help: "Requests processed, by method, route and status.",
	}, []string{"method", "path", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roadwiki_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// CacheLookups counts object cache reads; result is hit, miss or error.
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadwiki_cache_lookups_total",
		Help: "Object cache lookups by result.",
	}, []string{"result"})

	// StorageErrors counts repository failures by error kind.
	StorageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadwiki_storage_errors_total",
		Help: "Repository operations that failed, by kind.",
	}, []string{"kind"})
)

// Register registers every collector on reg, or the default registerer when
// nil. Collectors already registered are accepted.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, collector := range []prometheus.Collector{HTTPRequests, HTTPDuration, CacheLookups, StorageErrors} {
		if err := registerCollector(reg, collector); err != nil {
			return err
		}
	}
	return nil
}

func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
	}
	return nil
}

// ObserveStorageError counts one failed repository operation of the given kind.
func ObserveStorageError(kind error) {
	if kind == nil {
		return
	}
	StorageErrors.WithLabelValues(kind.Error()).Inc()
}
