// Package observability exposes Prometheus metrics for the webhook, the
// provider adapters and the outbound sender.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	webhookEvents = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "viberbot",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Inbound callback events by kind and verdict.",
	}, []string{"kind", "verdict"})

	providerRequests = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "viberbot",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Upstream provider calls by operation and status.",
	}, []string{"op", "status"})

	providerDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "viberbot",
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Upstream provider call latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"op"})

	outboundSends = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "viberbot",
		Subsystem: "sender",
		Name:      "sends_total",
		Help:      "Outbound platform sends by action and status.",
	}, []string{"action", "status"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// WebhookEvent counts one inbound callback. Verdict is "ok", "rejected" or
// "invalid".
func WebhookEvent(kind, verdict string) {
	webhookEvents.WithLabelValues(kind, verdict).Inc()
}

// ProviderCall records one upstream provider call with its latency.
func ProviderCall(op, status string, elapsed time.Duration) {
	providerRequests.WithLabelValues(op, status).Inc()
	providerDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// OutboundSend counts one platform send attempt.
func OutboundSend(action, status string) {
	outboundSends.WithLabelValues(action, status).Inc()
}

// Handler serves the /metrics endpoint for the package registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
