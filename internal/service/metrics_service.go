package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the matching
// subsystem.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	proposalsGenerated prometheus.Counter
	matchesConfirmed   prometheus.Counter
	autoMatched        prometheus.Counter
	autoUnmatched      prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	proposalsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proposals_generated_total",
		Help: "Total number of proposal generation passes",
	})

	matchesConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matches_confirmed_total",
		Help: "Total number of matches confirmed from proposals",
	})

	autoMatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "automatch_matched_total",
		Help: "Students matched by the auto-matching batch job",
	})

	autoUnmatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "automatch_unmatched_total",
		Help: "Students left unmatched by the auto-matching batch job",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, proposalsGenerated, matchesConfirmed, autoMatched, autoUnmatched, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		proposalsGenerated: proposalsGenerated,
		matchesConfirmed:   matchesConfirmed,
		autoMatched:        autoMatched,
		autoUnmatched:      autoUnmatched,
	}
}

// Handler exposes the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one handled request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	s.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, code).Inc()
}

// IncProposalsGenerated counts a proposal generation pass.
func (s *MetricsService) IncProposalsGenerated() {
	s.proposalsGenerated.Inc()
}

// IncMatchConfirmed counts a confirmed match.
func (s *MetricsService) IncMatchConfirmed() {
	s.matchesConfirmed.Inc()
}

// AddAutoMatchResult records an auto-match batch outcome.
func (s *MetricsService) AddAutoMatchResult(matched, unmatched int) {
	s.autoMatched.Add(float64(matched))
	s.autoUnmatched.Add(float64(unmatched))
}
