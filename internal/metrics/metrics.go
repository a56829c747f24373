package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)

	// Solves counts finished solves by solver status (OPTIMAL, INFEASIBLE, ...) or "error"
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crewroute_solves_total", Help: "Finished solves by status."},
		[]string{"status"},
	)
	// SolveDuration is the wall time of the search
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "crewroute_solve_duration_seconds", Help: "Solve wall time in seconds.", Buckets: []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30, 60, 300}},
		[]string{"status"},
	)
	// SearchNodes is the number of search nodes explored per solve
	SearchNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "crewroute_search_nodes", Help: "Search nodes explored per solve.", Buckets: prometheus.ExponentialBuckets(100, 10, 7)},
	)
	// ModelVariables is the variable count of built models
	ModelVariables = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "crewroute_model_variables", Help: "Variables per built model.", Buckets: prometheus.ExponentialBuckets(16, 4, 7)},
	)
	// RunsInFlight is the number of solves currently holding a slot
	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "crewroute_runs_in_flight", Help: "Solves currently running."},
	)
	// Throttled counts solve requests rejected by the rate limiter
	Throttled = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "crewroute_solve_throttled_total", Help: "Solve requests rejected by the rate limiter."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Solves, SolveDuration, SearchNodes, ModelVariables, RunsInFlight, Throttled)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// ObserveSolve records one finished solve.
func ObserveSolve(status string, wall time.Duration, nodes int64, vars int) {
	Solves.WithLabelValues(status).Inc()
	SolveDuration.WithLabelValues(status).Observe(wall.Seconds())
	if vars > 0 {
		SearchNodes.Observe(float64(nodes))
		ModelVariables.Observe(float64(vars))
	}
}
