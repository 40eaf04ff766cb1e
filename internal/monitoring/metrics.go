package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the relay.
// Scraped from /metrics and visualized in Grafana.
var (
	// Connection metrics
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_connections_total",
		Help: "Total number of WebSocket connections established",
	})

	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections_active",
		Help: "Current number of active WebSocket connections",
	})

	ConnectionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_connections_rejected_total",
		Help: "Total number of connection attempts rejected (capacity or upgrade failure)",
	})

	// Message metrics
	MessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_received_total",
		Help: "Total number of inbound frames received from clients",
	})

	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_delivered_total",
		Help: "Total number of frames delivered to recipients",
	})

	DeliveriesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_deliveries_dropped_total",
		Help: "Total deliveries skipped or dropped by reason",
	}, []string{"reason"})

	// Classifier / validator metrics
	ParseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_parse_errors_total",
		Help: "Total inbound frames that were not valid JSON",
	})

	ValidationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_validation_errors_total",
		Help: "Total inbound frames rejected by kind-specific validation",
	}, []string{"field"})

	BatchItemsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_batch_items_dropped_total",
		Help: "Total batch sub-items excluded for failing per-item validation",
	})

	// Liveness metrics
	LivenessEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_liveness_evictions_total",
		Help: "Total connections terminated by the liveness supervisor",
	})

	HeartbeatsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_heartbeats_sent_total",
		Help: "Total heartbeat probes sent to clients",
	})

	// Collaborator metrics
	CollaboratorFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_collaborator_failures_total",
		Help: "Total failed calls to external collaborators by call name",
	}, []string{"call"})

	// Rate limiting
	RateLimitedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_rate_limited_messages_total",
		Help: "Total inbound frames dropped by per-client rate limiting",
	})

	// Process metrics (sampled by the stats collector)
	ProcessCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_process_cpu_percent",
		Help: "Process CPU usage percent",
	})

	ProcessRSSBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_process_rss_bytes",
		Help: "Process resident memory in bytes",
	})

	Goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_goroutines",
		Help: "Current number of goroutines",
	})
)

// Delivery drop reasons
const (
	DropReasonOffline    = "offline"
	DropReasonBufferFull = "buffer_full"
	DropReasonExcluded   = "excluded"
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		ConnectionsActive,
		ConnectionsRejected,
		MessagesReceived,
		MessagesDelivered,
		DeliveriesDropped,
		ParseErrors,
		ValidationErrors,
		BatchItemsDropped,
		LivenessEvictions,
		HeartbeatsSent,
		CollaboratorFailures,
		RateLimitedMessages,
		ProcessCPUPercent,
		ProcessRSSBytes,
		Goroutines,
	)
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
