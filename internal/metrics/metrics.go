// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Registry is the registry served by Handler.
var Registry = prometheus.NewRegistry()

var (
	requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasko",
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tasko",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route", "status"})

	rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasko",
		Subsystem: "api",
		Name:      "rate_limit_hits_total",
		Help:      "Number of rate-limited responses",
	}, []string{"route"})

	taskMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasko",
		Subsystem: "tasks",
		Name:      "mutations_total",
		Help:      "Committed task mutations by kind",
	}, []string{"kind"})

	statusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasko",
		Subsystem: "tasks",
		Name:      "status_transitions_total",
		Help:      "Committed task status changes",
	}, []string{"from", "to"})

	policyDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasko",
		Subsystem: "policy",
		Name:      "denials_total",
		Help:      "Requests rejected by the permission policy",
	}, []string{"action"})

	notificationsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasko",
		Subsystem: "notifications",
		Name:      "created_total",
		Help:      "Notifications written by type",
	}, []string{"type"})

	realtimeEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tasko",
		Subsystem: "realtime",
		Name:      "events_published_total",
		Help:      "Realtime events handed to the broker",
	}, []string{"table", "result"})

	realtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tasko",
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Open realtime websocket connections",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestTotal,
		requestLatency,
		rateLimitHits,
		taskMutations,
		statusTransitions,
		policyDenials,
		notificationsCreated,
		realtimeEvents,
		realtimeConnections,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

func RecordRequest(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	requestTotal.With(labels).Inc()
	requestLatency.With(labels).Observe(duration.Seconds())
}

func RecordRateLimitHit(route string) {
	rateLimitHits.WithLabelValues(route).Inc()
}

func RecordTaskMutation(kind string) {
	taskMutations.WithLabelValues(kind).Inc()
}

func RecordStatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

func RecordPolicyDenial(action string) {
	policyDenials.WithLabelValues(action).Inc()
}

func RecordNotification(kind string) {
	notificationsCreated.WithLabelValues(kind).Inc()
}

func RecordRealtimeEvent(table string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	realtimeEvents.WithLabelValues(table, result).Inc()
}

func ConnectionOpened() { realtimeConnections.Inc() }
func ConnectionClosed() { realtimeConnections.Dec() }
