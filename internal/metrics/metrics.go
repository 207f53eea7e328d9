// Package metrics exposes Prometheus metrics for upstream calls, classifier
// outcomes, pipeline runs and the HTTP API.
//
// Each Metrics owns its registry so several instances (one per test) can
// coexist without duplicate registration panics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rabbitbrain"

// Metrics holds all collectors.
type Metrics struct {
	Registry *prometheus.Registry

	// Upstream HTTP (X API, classifier)
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	// Pipeline
	Runs               *prometheus.CounterVec
	ClassifierOutcomes *prometheus.CounterVec
	CandidatePosts     *prometheus.HistogramVec

	// HTTP API
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	RateLimited    prometheus.Counter
	ActiveRequests prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to upstream APIs.",
		}, []string{"upstream", "code", "method"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"upstream", "code", "method"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Analyze, discover and share runs by outcome code.",
		}, []string{"kind", "outcome"}),
		ClassifierOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_outcomes_total",
			Help:      "Topic classifications by stage reached.",
		}, []string{"stage"}),
		CandidatePosts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_posts",
			Help:      "Posts considered per run.",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 200},
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests.",
		}, []string{"method", "endpoint", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-caller limiter.",
		}),
		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "In-flight HTTP API requests.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.Runs,
		m.ClassifierOutcomes,
		m.CandidatePosts,
		m.HTTPRequests,
		m.HTTPDuration,
		m.RateLimited,
		m.ActiveRequests,
	)
	return m
}

// InstrumentClient returns a copy of c whose transport records request
// counts and latency labelled with upstream. A nil c yields a new client
// with the given timeout.
func (m *Metrics) InstrumentClient(upstream string, c *http.Client, timeout time.Duration) *http.Client {
	out := &http.Client{Timeout: timeout}
	if c != nil {
		cp := *c
		out = &cp
	}
	base := out.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	labels := prometheus.Labels{"upstream": upstream}
	out.Transport = promhttp.InstrumentRoundTripperCounter(
		m.UpstreamRequests.MustCurryWith(labels),
		promhttp.InstrumentRoundTripperDuration(
			m.UpstreamDuration.MustCurryWith(labels),
			base,
		),
	)
	return out
}

// Middleware records HTTP API metrics.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := c.Request.Method
		m.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
