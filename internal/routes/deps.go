package routes

import (
	"net/http"

	"github.com/strandhq/billing/internal/handler/api"
	"github.com/strandhq/billing/internal/handler/webhook"
)

// APIDeps contains handlers for the authenticated billing API.
type APIDeps struct {
	// Plan catalog (read routes are public, management requires billing access)
	PlanHandler *api.PlanHandler

	// Payment methods
	PaymentMethodHandler *api.PaymentMethodHandler

	// Subscription lifecycle
	SubscriptionHandler *api.SubscriptionHandler

	// Token pack purchases
	TokenHandler *api.TokenHandler

	// Billing summary
	SummaryHandler *api.SummaryHandler

	// Invoice ledger reads
	InvoiceHandler *api.InvoiceHandler
}

// WebhookDeps contains handlers for inbound gateway notifications.
type WebhookDeps struct {
	GatewayHandler *webhook.GatewayHandler
}

// OpsDeps contains operational endpoints.
type OpsDeps struct {
	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler

	// HealthHandler reports process liveness and database reachability.
	HealthHandler http.HandlerFunc
}
