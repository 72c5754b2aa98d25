package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// ProviderCalls counts external provider calls by provider, operation and outcome
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "provider_calls_total", Help: "External provider calls by provider, operation and outcome."},
		[]string{"provider", "op", "outcome"},
	)
	// ProviderLatency tracks provider call latencies in milliseconds
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "provider_call_latency_ms", Help: "Provider call latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 15000}},
		[]string{"provider", "op"},
	)
	// CacheLookups counts schedule cache lookups by namespace and result (hit, miss, error)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "schedule_cache_lookups_total", Help: "Schedule cache lookups by namespace and result."},
		[]string{"namespace", "result"},
	)
	// Explorations counts explorer runs by stop reason
	Explorations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "explorations_total", Help: "Port graph explorations by stop reason."},
		[]string{"stopped_by"},
	)
	// VoyageRejections counts voyages rejected by the explorer by reason
	VoyageRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "explorer_voyage_rejections_total", Help: "Voyages rejected during exploration by reason."},
		[]string{"reason"},
	)
	// GraphBuilds counts graph builds by result (ok, partial, error)
	GraphBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "graph_builds_total", Help: "Multimodal graph builds by result."},
		[]string{"result"},
	)
	GraphEdges = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "graph_edges", Help: "Edges per built graph.", Buckets: prometheus.ExponentialBuckets(8, 2, 10)},
	)
	// WebhookDeliveries counts webhook attempts by result (ok, retry, failed, dropped)
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook delivery attempts by result."},
		[]string{"result"},
	)
)

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(ProviderCalls)
		Registry.MustRegister(ProviderLatency)
		Registry.MustRegister(CacheLookups)
		Registry.MustRegister(Explorations)
		Registry.MustRegister(VoyageRejections)
		Registry.MustRegister(GraphBuilds)
		Registry.MustRegister(GraphEdges)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
