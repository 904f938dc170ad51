// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingest metrics
	EnvelopesReceived *prometheus.CounterVec
	AccountsSkipped   *prometheus.CounterVec
	MintsEnqueued     prometheus.Counter
	IngestErrors      *prometheus.CounterVec
	Resubscribes      prometheus.Counter
	HighestSlotSeen   prometheus.Gauge

	// Queue metrics
	QueueOps        *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec
	QueueDepth      prometheus.Gauge

	// Worker metrics
	MessagesProcessed *prometheus.CounterVec
	MessageDuration   prometheus.Histogram
	StageErrors       *prometheus.CounterVec
	IndexWrites       *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastProcessedMessage    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_nft_indexer"
	}

	return &Metrics{
		// Ingest metrics
		EnvelopesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "envelopes_received_total",
			Help:      "Total number of feed envelopes received by kind",
		}, []string{"kind"}),
		AccountsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "accounts_skipped_total",
			Help:      "Total number of account updates not treated as mints",
		}, []string{"reason"}),
		MintsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "mints_enqueued_total",
			Help:      "Total number of decoded mints pushed to the queue",
		}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Total number of ingest errors by type",
		}, []string{"error_type"}),
		Resubscribes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "resubscribes_total",
			Help:      "Total number of feed resubscriptions after stream termination",
		}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		// Queue metrics
		QueueOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "operations_total",
			Help:      "Total number of queue operations by op and status",
		}, []string{"op", "status"}),
		MessagesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "messages_dropped_total",
			Help:      "Total number of queue messages discarded without processing",
		}, []string{"reason"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Last observed number of queued messages",
		}),

		// Worker metrics
		MessagesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "messages_processed_total",
			Help:      "Total number of messages processed by outcome",
		}, []string{"outcome"}),
		MessageDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "message_duration_seconds",
			Help:      "End-to-end processing time per message",
			Buckets:   prometheus.DefBuckets,
		}),
		StageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "stage_errors_total",
			Help:      "Total number of stage failures by stage and kind",
		}, []string{"stage", "kind"}),
		IndexWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "index_writes_total",
			Help:      "Total number of search document writes by status",
		}, []string{"status"}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last mint enqueued",
		}),
		LastProcessedMessage: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_processed_message_timestamp",
			Help:      "Unix timestamp of last message finished by a worker",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordEnvelope counts a received feed envelope.
func RecordEnvelope(kind string) {
	DefaultMetrics.EnvelopesReceived.WithLabelValues(kind).Inc()
}

// RecordAccountSkipped counts an account update that was not enqueued.
func RecordAccountSkipped(reason string) {
	DefaultMetrics.AccountsSkipped.WithLabelValues(reason).Inc()
}

// RecordMintEnqueued counts a mint pushed to the queue.
func RecordMintEnqueued() {
	DefaultMetrics.MintsEnqueued.Inc()
	DefaultMetrics.LastSuccessfulIngestion.Set(float64(time.Now().Unix()))
}

// RecordIngestError records an ingest error.
func RecordIngestError(errorType string) {
	DefaultMetrics.IngestErrors.WithLabelValues(errorType).Inc()
}

// RecordResubscribe counts a feed resubscription.
func RecordResubscribe() {
	DefaultMetrics.Resubscribes.Inc()
}

// UpdateHighestSlot updates the highest slot seen gauge.
func UpdateHighestSlot(slot uint64) {
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// RecordQueueOp records a queue push or pop.
func RecordQueueOp(op string, err error) {
	DefaultMetrics.QueueOps.WithLabelValues(op, status(err)).Inc()
}

// RecordMessageDropped counts a discarded queue message.
func RecordMessageDropped(reason string) {
	DefaultMetrics.MessagesDropped.WithLabelValues(reason).Inc()
}

// UpdateQueueDepth sets the queue depth gauge.
func UpdateQueueDepth(n int) {
	DefaultMetrics.QueueDepth.Set(float64(n))
}

// RecordOutcome records a finished message.
func RecordOutcome(outcome string, seconds float64) {
	DefaultMetrics.MessagesProcessed.WithLabelValues(outcome).Inc()
	DefaultMetrics.MessageDuration.Observe(seconds)
	DefaultMetrics.LastProcessedMessage.Set(float64(time.Now().Unix()))
}

// RecordStageError records a failed pipeline stage.
func RecordStageError(stage, kind string) {
	DefaultMetrics.StageErrors.WithLabelValues(stage, kind).Inc()
}

// RecordIndexWrite records a search index write.
func RecordIndexWrite(err error) {
	DefaultMetrics.IndexWrites.WithLabelValues(status(err)).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
