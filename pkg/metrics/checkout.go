package metrics

import "github.com/prometheus/client_golang/prometheus"

// Webhook outcomes.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
	WebhookFailed    = "failed"
)

// CheckoutMetrics counts checkout and payment reconciliation outcomes.
type CheckoutMetrics struct {
	ordersCreated       prometheus.Counter
	emptyCart           prometheus.Counter
	paymentInitFailures prometheus.Counter
	webhooks            *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on reg.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders assembled from carts.",
		}),
		emptyCart: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_empty_cart_total",
			Help:      "Checkouts rejected because the cart was empty.",
		}),
		paymentInitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_init_failures_total",
			Help:      "Gateway transaction initializations that failed.",
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhooks_total",
			Help:      "Gateway webhook deliveries by event and outcome.",
		}, []string{"event", "outcome"}),
	}
	reg.MustRegister(m.ordersCreated, m.emptyCart, m.paymentInitFailures, m.webhooks)
	return m
}

func (m *CheckoutMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *CheckoutMetrics) IncEmptyCart() {
	if m == nil || m.emptyCart == nil {
		return
	}
	m.emptyCart.Inc()
}

func (m *CheckoutMetrics) IncPaymentInitFailure() {
	if m == nil || m.paymentInitFailures == nil {
		return
	}
	m.paymentInitFailures.Inc()
}

// IncWebhook counts a webhook delivery.
func (m *CheckoutMetrics) IncWebhook(event, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}
