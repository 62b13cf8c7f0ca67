package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medgraph"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Graph metrics
	entitiesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_written_total",
			Help:      "Entities written to the store",
		},
		[]string{"entity_type"},
	)

	relationshipsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relationships_written_total",
			Help:      "Relationships written to the store",
		},
		[]string{"predicate"},
	)

	mappingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapping_errors_total",
			Help:      "Persisted records that could not be mapped to the domain model",
		},
		[]string{"record"},
	)

	storeQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_seconds",
			Help:      "Record store call duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Ingestion metrics
	claimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Extracted claims by outcome",
		},
		[]string{"outcome", "reason"},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Provider calls by operation and status",
		},
		[]string{"provider", "operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := NormalizePath(r.URL.Path)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// NormalizePath collapses entity IDs so label cardinality stays bounded.
func NormalizePath(path string) string {
	if rest, ok := strings.CutPrefix(path, "/entities/"); ok && rest != "" && rest != "similar" {
		return "/entities/:id"
	}
	if rest, ok := strings.CutPrefix(path, "/runs/"); ok && rest != "" {
		return "/runs/:id"
	}
	return path
}

func RecordEntityWritten(entityType string) {
	entitiesWritten.WithLabelValues(entityType).Inc()
}

func RecordRelationshipWritten(predicate string) {
	relationshipsWritten.WithLabelValues(predicate).Inc()
}

func RecordMappingError(record string) {
	mappingErrors.WithLabelValues(record).Inc()
}

func ObserveStoreCall(operation string, start time.Time) {
	storeQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordClaim counts one extracted claim; reason is empty for accepted claims.
func RecordClaim(accepted bool, reason string) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	claimsTotal.WithLabelValues(outcome, reason).Inc()
}

func RecordLLMCall(provider, operation, status string) {
	llmCallsTotal.WithLabelValues(provider, operation, status).Inc()
}
