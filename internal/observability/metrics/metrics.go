package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the payment-reconciliation counters.
type Metrics struct {
	SessionsCreated    prometheus.Counter
	Confirmations      *prometheus.CounterVec
	WebhookRejections  *prometheus.CounterVec
	RefundsIssued      prometheus.Counter
	RemoteCallFailures *prometheus.CounterVec
}

// Confirmation path labels.
const (
	PathRedirect = "redirect"
	PathWebhook  = "webhook"
)

// New registers the reconciliation metrics on the given registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "checkout_sessions_created_total",
			Help:      "Checkout sessions created against the processor.",
		}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "payment_confirmations_total",
			Help:      "Orders confirmed, by confirmation path.",
		}, []string{"path"}),
		WebhookRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "webhook_rejections_total",
			Help:      "Webhook deliveries rejected, by reason.",
		}, []string{"reason"}),
		RefundsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "refunds_issued_total",
			Help:      "Refunds issued on order cancellation.",
		}),
		RemoteCallFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "remote_call_failures_total",
			Help:      "Failed calls to the processor API, by operation.",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.SessionsCreated,
		m.Confirmations,
		m.WebhookRejections,
		m.RefundsIssued,
		m.RemoteCallFailures,
	)
	return m
}

func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func (m *Metrics) RecordConfirmation(path string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(path).Inc()
}

func (m *Metrics) RecordWebhookRejection(reason string) {
	if m == nil {
		return
	}
	m.WebhookRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordRefund() {
	if m == nil {
		return
	}
	m.RefundsIssued.Inc()
}

func (m *Metrics) RecordRemoteCallFailure(operation string) {
	if m == nil {
		return
	}
	m.RemoteCallFailures.WithLabelValues(operation).Inc()
}
