package telemetry

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Beez1/bounceinsights/internal/types"
)

// PrometheusCollector exposes the same metrics as CloudWatchCollector on a
// private registry for scraping.
type PrometheusCollector struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	sources        *prometheus.CounterVec
	sourceLatency  *prometheus.HistogramVec
	stages         *prometheus.CounterVec
	briefings      *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the service metrics under namespace.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	namespace = promName(namespace)

	p := &PrometheusCollector{registry: prometheus.NewRegistry()}
	p.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "endpoint", "status"})
	p.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
	p.sources = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_results_total",
		Help:      "Source adapter outcomes",
	}, []string{"source", "outcome"})
	p.sourceLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_duration_seconds",
		Help:      "Source adapter latency",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"source"})
	p.stages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallback_stage_total",
		Help:      "Satellite fallback chain terminal stages",
	}, []string{"stage"})
	p.briefings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "briefings_total",
		Help:      "Email briefing dispatch outcomes",
	}, []string{"outcome"})

	p.registry.MustRegister(
		p.requests, p.requestLatency,
		p.sources, p.sourceLatency,
		p.stages, p.briefings,
		collectors.NewGoCollector(),
	)
	return p
}

func (p *PrometheusCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	p.requests.WithLabelValues(method, endpoint, status).Inc()
	p.requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordSource(source types.DataType, outcome string, duration time.Duration) {
	p.sources.WithLabelValues(string(source), outcome).Inc()
	p.sourceLatency.WithLabelValues(string(source)).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordFallbackStage(stage types.FallbackStage) {
	p.stages.WithLabelValues(string(stage)).Inc()
}

func (p *PrometheusCollector) RecordBriefing(outcome string) {
	p.briefings.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (p *PrometheusCollector) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// promName lowercases a CamelCase namespace into snake_case.
func promName(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		if r == '-' || r == ' ' || r == '.' {
			r = '_'
		}
		b.WriteRune(r)
	}
	return b.String()
}
