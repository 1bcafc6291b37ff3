package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics carries every series the service exposes: HTTP
// surface, provider calls, and similarity searches.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	providerRequestsTotal *prometheus.CounterVec
	providerDuration      *prometheus.HistogramVec

	searchesTotal       prometheus.Counter
	searchWarningsTotal prometheus.Counter
	searchRankedMatches prometheus.Histogram

	corpusImages prometheus.Gauge
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visearch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "visearch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "visearch",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	providerRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visearch",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Provider call attempts by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	providerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "visearch",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Provider call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)
	searchesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "visearch",
			Subsystem: "similarity",
			Name:      "searches_total",
			Help:      "Total completed find-similar requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchWarningsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "visearch",
			Subsystem: "similarity",
			Name:      "search_warnings_total",
			Help:      "Corpus entries excluded from a search result.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRankedMatches := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "visearch",
			Subsystem: "similarity",
			Name:      "ranked_matches",
			Help:      "Distribution of ranked matches per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	corpusImages := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "visearch",
			Subsystem: "corpus",
			Name:      "images",
			Help:      "Number of images in the corpus as of the last listing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		providerRequestsTotal,
		providerDuration,
		searchesTotal,
		searchWarningsTotal,
		searchRankedMatches,
		corpusImages,
	)

	return &PipelineMetrics{
		registry:              registry,
		service:               service,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		providerRequestsTotal: providerRequestsTotal,
		providerDuration:      providerDuration,
		searchesTotal:         searchesTotal,
		searchWarningsTotal:   searchWarningsTotal,
		searchRankedMatches:   searchRankedMatches,
		corpusImages:          corpusImages,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *PipelineMetrics) ObserveProviderCall(operation, outcome string, duration time.Duration) {
	m.providerRequestsTotal.WithLabelValues(m.service, operation, outcome).Inc()
	m.providerDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *PipelineMetrics) SetCorpusSize(n int) {
	m.corpusImages.Set(float64(n))
}

func (m *PipelineMetrics) ObserveSearch(matches, warnings int) {
	m.searchesTotal.Inc()
	m.searchRankedMatches.Observe(float64(matches))
	if warnings > 0 {
		m.searchWarningsTotal.Add(float64(warnings))
	}
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/images/"):
		return "/api/images/{filename}"
	default:
		return path
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
