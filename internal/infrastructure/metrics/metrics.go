package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics holds the payment and gateway collectors.
type PaymentMetrics struct {
	// Initiation
	PaymentsInitiatedTotal       *prometheus.CounterVec
	PaymentsInitiatedAmountTotal *prometheus.CounterVec
	PaymentInitiateFailuresTotal *prometheus.CounterVec

	// Status transitions
	PaymentTransitionsTotal *prometheus.CounterVec
	PaymentsCompletedAmount *prometheus.CounterVec
	PaymentDuration         *prometheus.HistogramVec

	// Refunds
	PaymentsRefundedTotal       *prometheus.CounterVec
	PaymentsRefundedAmountTotal *prometheus.CounterVec

	// Reconciliation
	PaymentsReconciledTotal *prometheus.CounterVec

	// Gateway
	GatewayRequestDuration *prometheus.HistogramVec

	PaymentErrorsTotal *prometheus.CounterVec
}

// NewPaymentMetrics registers the collectors on reg. A nil reg means the default registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PaymentMetrics{
		PaymentsInitiatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_initiated_total",
				Help: "Number of payments created at the gateway",
			},
			[]string{"gateway", "currency"},
		),

		PaymentsInitiatedAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_initiated_amount_total",
				Help: "Sum of initiated payment amounts",
			},
			[]string{"gateway", "currency"},
		),

		PaymentInitiateFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_initiate_failures_total",
				Help: "Create payment attempts rejected or failed at the gateway",
			},
			[]string{"gateway", "kind"},
		),

		PaymentTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_transitions_total",
				Help: "Durable transaction status transitions",
			},
			[]string{"from", "to"},
		),

		PaymentsCompletedAmount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_completed_amount_total",
				Help: "Sum of completed payment amounts",
			},
			[]string{"gateway", "currency"},
		),

		PaymentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_duration_seconds",
				Help:    "Time from creation to the final status of a transaction",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"status"},
		),

		PaymentsRefundedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_refunded_total",
				Help: "Number of refunded transactions",
			},
			[]string{"gateway", "currency"},
		),

		PaymentsRefundedAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_refunded_amount_total",
				Help: "Sum of refunded amounts",
			},
			[]string{"gateway", "currency"},
		),

		PaymentsReconciledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_reconciled_total",
				Help: "Reconciliation results per transaction",
			},
			[]string{"outcome"},
		),

		GatewayRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "Latency of calls to the payment provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "outcome"},
		),

		PaymentErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_errors_total",
				Help: "Payment use case errors by operation and kind",
			},
			[]string{"op", "kind"},
		),
	}
}

func (m *PaymentMetrics) RecordInitiated(gateway, currency string, amount float64) {
	m.PaymentsInitiatedTotal.WithLabelValues(gateway, currency).Inc()
	m.PaymentsInitiatedAmountTotal.WithLabelValues(gateway, currency).Add(amount)
}

func (m *PaymentMetrics) RecordInitiateFailed(gateway, kind string) {
	m.PaymentInitiateFailuresTotal.WithLabelValues(gateway, kind).Inc()
}

func (m *PaymentMetrics) RecordTransition(from, to string) {
	m.PaymentTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *PaymentMetrics) RecordCompleted(gateway, currency string, amount float64, sinceCreated time.Duration) {
	m.PaymentsCompletedAmount.WithLabelValues(gateway, currency).Add(amount)
	m.PaymentDuration.WithLabelValues("COMPLETED").Observe(sinceCreated.Seconds())
}

func (m *PaymentMetrics) RecordFinished(status string, sinceCreated time.Duration) {
	m.PaymentDuration.WithLabelValues(status).Observe(sinceCreated.Seconds())
}

func (m *PaymentMetrics) RecordRefunded(gateway, currency string, amount float64) {
	m.PaymentsRefundedTotal.WithLabelValues(gateway, currency).Inc()
	m.PaymentsRefundedAmountTotal.WithLabelValues(gateway, currency).Add(amount)
}

func (m *PaymentMetrics) RecordReconciled(outcome string) {
	m.PaymentsReconciledTotal.WithLabelValues(outcome).Inc()
}

func (m *PaymentMetrics) ObserveGatewayRequest(op, outcome string, d time.Duration) {
	m.GatewayRequestDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

func (m *PaymentMetrics) RecordError(op, kind string) {
	m.PaymentErrorsTotal.WithLabelValues(op, kind).Inc()
}
