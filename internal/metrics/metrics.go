// Package metrics holds the Prometheus collectors of the solver service.
package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, route, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )
    // RateLimited counts solve requests rejected by the per-tenant limiter
    RateLimited = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "solve_rate_limited_total", Help: "Solve requests rejected by rate limiting."},
    )

    // SolveRuns counts finished runs by outcome (done, failed)
    SolveRuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "solve_runs_total", Help: "Finished solver runs by status."},
        []string{"status"},
    )
    // SolveDuration records wall time of a run in seconds
    SolveDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "solve_duration_seconds", Help: "Solver run wall time in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600}},
    )
    // SolveImprovement records the local-search cost reduction in percent
    SolveImprovement = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "solve_improvement_percent", Help: "Cost reduction of local search over construction, in percent.", Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 30, 50}},
    )
    // RunsInFlight is the number of solves currently running
    RunsInFlight = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "solve_runs_in_flight", Help: "Solver runs currently executing."},
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

// RegisterDefault registers every collector on Registry once.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(
            HTTPRequests, HTTPDuration, RateLimited,
            SolveRuns, SolveDuration, SolveImprovement, RunsInFlight,
            WebhookDeliveries, WebhookLatency,
        )
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once

// ObserveRun records one finished run.
func ObserveRun(status string, seconds, improvement float64) {
    SolveRuns.WithLabelValues(status).Inc()
    SolveDuration.Observe(seconds)
    if status == "done" {
        SolveImprovement.Observe(improvement)
    }
}
