// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration observes request latency per method, path, and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clinic",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// InvoicesCreated counts invoices created since process start.
	InvoicesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clinic",
		Subsystem: "billing",
		Name:      "invoices_created_total",
		Help:      "Invoices created.",
	})

	// PaymentsRecorded counts patient payments recorded.
	PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clinic",
		Subsystem: "billing",
		Name:      "payments_recorded_total",
		Help:      "Patient payments recorded.",
	})

	// RefundsIssued counts patient refunds issued.
	RefundsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clinic",
		Subsystem: "billing",
		Name:      "refunds_issued_total",
		Help:      "Patient refunds issued.",
	})

	// StockRejections counts invoice attempts rejected for insufficient stock.
	StockRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clinic",
		Subsystem: "inventory",
		Name:      "stock_rejections_total",
		Help:      "Invoice lines rejected because stock ran out.",
	})
)
