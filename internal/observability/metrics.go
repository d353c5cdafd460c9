package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "service_match", Name: "ws_connections_active", Help: "Active websocket connections per namespace"},
		[]string{"namespace"},
	)
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "service_match", Name: "broadcasts_total", Help: "Room broadcasts by event name"},
		[]string{"event"},
	)
	MessagesTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_match", Name: "chat_messages_total", Help: "Chat messages relayed"})
	RequestFanouts   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_match", Name: "request_fanouts_total", Help: "New-request fan-outs to provider rooms"})
	NotifyFailures   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_match", Name: "notify_failures_total", Help: "Fire-and-forget notification dispatch failures"})
	CoordinatorFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "service_match", Name: "coordinator_faults_total", Help: "Coordinator failures by fault code"},
		[]string{"code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "service_match", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "service_match",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
