package routes

import (
	"github.com/strandhq/billing/internal/middleware"
	"github.com/strandhq/billing/internal/router"
)

// RegisterAPIRoutes registers the billing API surface.
//
// Plan reads are public so pricing pages can render without a token.
// Everything under /billing requires an authenticated principal, and
// mutations additionally require a role allowed to manage billing.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Public plan catalog reads
	r.Get("/plans", deps.PlanHandler.List)
	r.Get("/plans/{id}", deps.PlanHandler.Get)

	// Plan catalog management
	manage := r.Group(middleware.RequireBillingAccess)
	manage.Post("/plans", deps.PlanHandler.Create)
	manage.Patch("/plans/{id}", deps.PlanHandler.Update)
	manage.Post("/plans/{id}/retire", deps.PlanHandler.Retire)
	manage.Post("/plans/{id}/reactivate", deps.PlanHandler.Reactivate)

	// Organization-scoped reads
	authed := r.Group(middleware.RequireAuth)
	authed.Get("/billing/summary", deps.SummaryHandler.Get)
	authed.Get("/billing/invoices", deps.InvoiceHandler.List)
	authed.Get("/billing/invoices/{id}", deps.InvoiceHandler.Get)
	authed.Get("/billing/payment-methods", deps.PaymentMethodHandler.List)
	authed.Get("/billing/subscription", deps.SubscriptionHandler.Get)

	// Organization-scoped mutations
	manage.Post("/billing/payment-methods", deps.PaymentMethodHandler.Create)
	manage.Post("/billing/payment-methods/{id}/default", deps.PaymentMethodHandler.SetDefault)
	manage.Delete("/billing/payment-methods/{id}", deps.PaymentMethodHandler.Delete)
	manage.Post("/billing/subscription", deps.SubscriptionHandler.Create)
	manage.Patch("/billing/subscription", deps.SubscriptionHandler.ChangePlan)
	manage.Delete("/billing/subscription", deps.SubscriptionHandler.Cancel)
	manage.Post("/billing/tokens", deps.TokenHandler.Purchase)
}
