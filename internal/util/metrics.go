package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Total number of sales recorded",
	})

	SalesUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_updated_total",
		Help: "Total number of sales revised",
	})

	SalesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_deleted_total",
		Help: "Total number of sales deleted with stock restored",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of failed ledger operations",
	}, []string{"operation", "reason"})

	UnitsSold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "units_sold",
		Help: "Net units removed from stock by ledger operations since start",
	})

	LedgerTxLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_tx_latency_seconds",
		Help:    "Latency of ledger transactions including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	LedgerTxRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_tx_retries_total",
		Help: "Total number of ledger transactions retried after a conflict",
	}, []string{"operation"})

	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_idempotent_replays_total",
		Help: "Total number of create requests answered from an idempotency key",
	})

	SaleEventsPublishFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sale_events_publish_failed_total",
		Help: "Total number of sale events that could not be published",
	})

	SummaryEventsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summary_events_applied_total",
		Help: "Total number of sale events applied to the summary projection",
	}, []string{"event_type"})

	ConsumerRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_consumer_retries_total",
		Help: "Total number of event handler attempts retried",
	})

	ConsumerSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_consumer_skipped_total",
		Help: "Total number of malformed events committed without being applied",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
