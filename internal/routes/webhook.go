package routes

import (
	"github.com/strandhq/billing/internal/middleware"
	"github.com/strandhq/billing/internal/router"
)

// RegisterWebhookRoutes registers inbound gateway webhook routes.
//
// Webhook routes carry no authentication middleware. The handler
// verifies the gateway's payload signature itself, which is the only
// trust anchor the gateway offers. Rate limiting and a tight body cap
// keep a misbehaving sender from soaking the service.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/gateway", deps.GatewayHandler.HandleWebhook,
		middleware.RateLimit(middleware.DefaultRateLimiterConfig()),
		middleware.MaxBodySize(middleware.SmallMaxBodySize),
	)
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.HealthHandler)
	r.Handle("GET", "/metrics", deps.MetricsHandler)
}
