package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
// All metrics include an organization_id label for per-tenant dashboard
// segmentation.
type BusinessMetrics struct {
	// Payments
	PaymentAttempts  *prometheus.CounterVec
	PaymentSucceeded *prometheus.CounterVec
	PaymentFailed    *prometheus.CounterVec

	// Subscriptions
	SubscriptionsCreated  *prometheus.CounterVec
	SubscriptionsCanceled *prometheus.CounterVec
	SubscriptionRenewals  *prometheus.CounterVec
	PlanChanges           *prometheus.CounterVec
	TrialConversions      *prometheus.CounterVec

	// Invoices
	InvoicesCreated *prometheus.CounterVec
	TokenPacksSold  *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Revenue tracking
	RevenueCollected *prometheus.CounterVec
	RefundsIssued    *prometheus.CounterVec
	RefundAmount     *prometheus.CounterVec

	// Renewal sweep
	RenewalSweepRuns     *prometheus.CounterVec
	RenewalSweepDuration *prometheus.HistogramVec

	// External API performance
	GatewayAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "strand"
	}

	subsystem := "billing"

	m := &BusinessMetrics{
		// =======================================================================
		// Payments
		// =======================================================================
		PaymentAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_attempts_total",
				Help:      "Total charge attempts sent to the gateway",
			},
			[]string{"organization_id", "invoice_type"},
		),
		PaymentSucceeded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_succeeded_total",
				Help:      "Total successful charges",
			},
			[]string{"organization_id", "invoice_type"},
		),
		PaymentFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_failed_total",
				Help:      "Total failed charges by failure class",
			},
			[]string{"organization_id", "invoice_type", "failure_class"}, // failure_class: declined, transient
		),

		// =======================================================================
		// Subscriptions
		// =======================================================================
		SubscriptionsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "subscriptions_created_total",
				Help:      "Total subscriptions started",
			},
			[]string{"organization_id", "trial"},
		),
		SubscriptionsCanceled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "subscriptions_canceled_total",
				Help:      "Total subscriptions canceled",
			},
			[]string{"organization_id", "mode"}, // mode: immediate, period_end
		),
		SubscriptionRenewals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "subscription_renewals_total",
				Help:      "Total subscription periods advanced by the renewal sweep",
			},
			[]string{"organization_id"},
		),
		PlanChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "plan_changes_total",
				Help:      "Total plan changes by direction",
			},
			[]string{"organization_id", "direction"}, // direction: upgrade, downgrade
		),
		TrialConversions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "trial_conversions_total",
				Help:      "Total trials converted to active subscriptions",
			},
			[]string{"organization_id"},
		),

		// =======================================================================
		// Invoices
		// =======================================================================
		InvoicesCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoices_created_total",
				Help:      "Total invoices appended to the ledger",
			},
			[]string{"organization_id", "invoice_type"},
		),
		TokenPacksSold: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "token_packs_sold_total",
				Help:      "Total token pack purchases",
			},
			[]string{"organization_id", "plan"},
		),

		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_received_total",
				Help:      "Total webhook events received by type",
			},
			[]string{"event_type"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_processed_total",
				Help:      "Total webhook events processed successfully",
			},
			[]string{"event_type"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_failed_total",
				Help:      "Total webhook events that failed processing",
			},
			[]string{"event_type", "error_type"}, // error_type: bad_signature, processing
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Webhook processing duration",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"event_type"},
		),

		// =======================================================================
		// Revenue Tracking
		// =======================================================================
		RevenueCollected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "revenue_collected_cents_total",
				Help:      "Total revenue collected in minor currency units",
			},
			[]string{"organization_id", "invoice_type", "currency"},
		),
		RefundsIssued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refunds_issued_total",
				Help:      "Total refunds issued",
			},
			[]string{"organization_id"},
		),
		RefundAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refund_amount_cents_total",
				Help:      "Total refunded amount in minor currency units",
			},
			[]string{"organization_id", "currency"},
		),

		// =======================================================================
		// Renewal Sweep
		// =======================================================================
		RenewalSweepRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "renewal_sweep_runs_total",
				Help:      "Total renewal sweep executions by outcome",
			},
			[]string{"worker_id", "outcome"}, // outcome: ok, error
		),
		RenewalSweepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "renewal_sweep_duration_seconds",
				Help:      "Renewal sweep execution duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"worker_id"},
		),

		// =======================================================================
		// External API Performance
		// =======================================================================
		GatewayAPILatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gateway_api_duration_seconds",
				Help:      "Payment gateway API call duration (differentiates app slowness from gateway issues)",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"}, // operation: tokenize, charge, create_subscription, etc.
		),
	}

	return m
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
