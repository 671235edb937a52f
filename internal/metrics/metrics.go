// Package metrics exposes the prometheus collectors for cache behaviour,
// enrichment calls and classification latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clip"

// Cache names used as the "cache" label.
const (
	CacheImage     = "image_embedding"
	CacheLabel     = "label_embedding"
	CacheLabelMemo = "label_memo"
	CacheExpansion = "label_expansion"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheLookups          *prometheus.CounterVec
	ExpansionRequests     *prometheus.CounterVec
	ClassificationLatency prometheus.Histogram
	SimilarMatches        prometheus.Histogram
	HTTPRequests          *prometheus.CounterVec
	HTTPLatency           *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result (hit or miss).",
		}, []string{"cache", "result"}),
		ExpansionRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_requests_total",
			Help:      "Label enrichment requests by outcome.",
		}, []string{"outcome"}),
		ClassificationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "End-to-end classification latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		SimilarMatches: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "similar_matches",
			Help:      "Near-duplicate candidates returned per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RegisterStoreState exposes the persistent store lifecycle state as a gauge.
func RegisterStoreState(reg prometheus.Registerer, state func() float64) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "store_state",
		Help:      "Persistent store state: 0 uninitialized, 1 ready, 2 disabled.",
	}, state)
}

// ObserveCache counts one lookup.
func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveExpansion counts one enrichment request outcome
// (disabled, cache_hit, remote_ok, remote_error).
func (m *Metrics) ObserveExpansion(outcome string) {
	if m == nil {
		return
	}
	m.ExpansionRequests.WithLabelValues(outcome).Inc()
}

// ObserveClassification records the latency since start.
func (m *Metrics) ObserveClassification(start time.Time) {
	if m == nil {
		return
	}
	m.ClassificationLatency.Observe(time.Since(start).Seconds())
}

// ObserveSimilar records how many candidates a search returned.
func (m *Metrics) ObserveSimilar(n int) {
	if m == nil {
		return
	}
	m.SimilarMatches.Observe(float64(n))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
