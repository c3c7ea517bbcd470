package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/strandhq/billing/internal/domain"
)

// Response shapes. Domain structs are kept free of JSON tags so the
// wire format is owned here and can evolve independently.

type planResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Kind           string    `json:"kind"`
	PriceCents     int64     `json:"price_cents"`
	Currency       string    `json:"currency"`
	BillingCycle   string    `json:"billing_cycle"`
	MaxStylists    *int32    `json:"max_stylists,omitempty"`
	MaxClients     *int32    `json:"max_clients,omitempty"`
	MonthlyTokens  *int32    `json:"monthly_tokens,omitempty"`
	TokenAmount    *int32    `json:"token_amount,omitempty"`
	GatewayPriceID string    `json:"gateway_price_id,omitempty"`
	SortOrder      int32     `json:"sort_order"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toPlanResponse(p *domain.Plan) planResponse {
	return planResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Kind:           p.Kind,
		PriceCents:     p.PriceCents,
		Currency:       p.Currency,
		BillingCycle:   p.BillingCycle,
		MaxStylists:    p.MaxStylists,
		MaxClients:     p.MaxClients,
		MonthlyTokens:  p.MonthlyTokens,
		TokenAmount:    p.TokenAmount,
		GatewayPriceID: p.GatewayPriceID,
		SortOrder:      p.SortOrder,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toPlanResponses(plans []domain.Plan) []planResponse {
	out := make([]planResponse, len(plans))
	for i := range plans {
		out[i] = toPlanResponse(&plans[i])
	}
	return out
}

type paymentMethodResponse struct {
	ID         uuid.UUID `json:"id"`
	MethodType string    `json:"method_type"`
	Brand      string    `json:"brand"`
	Last4      string    `json:"last4"`
	ExpMonth   int32     `json:"exp_month"`
	ExpYear    int32     `json:"exp_year"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

func toPaymentMethodResponse(m *domain.PaymentMethod) paymentMethodResponse {
	return paymentMethodResponse{
		ID:         m.ID,
		MethodType: m.MethodType,
		Brand:      m.Brand,
		Last4:      m.Last4,
		ExpMonth:   m.ExpMonth,
		ExpYear:    m.ExpYear,
		IsDefault:  m.IsDefault,
		CreatedAt:  m.CreatedAt,
	}
}

func toPaymentMethodResponses(methods []domain.PaymentMethod) []paymentMethodResponse {
	out := make([]paymentMethodResponse, len(methods))
	for i := range methods {
		out[i] = toPaymentMethodResponse(&methods[i])
	}
	return out
}

type subscriptionResponse struct {
	ID                 uuid.UUID  `json:"id"`
	OrganizationID     uuid.UUID  `json:"organization_id"`
	PlanID             uuid.UUID  `json:"plan_id"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toSubscriptionResponse(s *domain.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                 s.ID,
		OrganizationID:     s.OrganizationID,
		PlanID:             s.PlanID,
		Status:             s.Status,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		TrialEndsAt:        s.TrialEndsAt,
		CreatedAt:          s.CreatedAt,
	}
}

type invoiceResponse struct {
	ID             uuid.UUID         `json:"id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	SubscriptionID *uuid.UUID        `json:"subscription_id,omitempty"`
	Type           string            `json:"type"`
	Status         string            `json:"status"`
	LineItems      []domain.LineItem `json:"line_items"`
	SubtotalCents  int64             `json:"subtotal_cents"`
	TaxCents       int64             `json:"tax_cents"`
	TotalCents     int64             `json:"total_cents"`
	Currency       string            `json:"currency"`
	IssueDate      time.Time         `json:"issue_date"`
	DueDate        time.Time         `json:"due_date"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	PeriodStart    *time.Time        `json:"period_start,omitempty"`
	PeriodEnd      *time.Time        `json:"period_end,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func toInvoiceResponse(inv *domain.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:             inv.ID,
		OrganizationID: inv.OrganizationID,
		SubscriptionID: inv.SubscriptionID,
		Type:           inv.Type,
		Status:         inv.Status,
		LineItems:      inv.LineItems,
		SubtotalCents:  inv.SubtotalCents,
		TaxCents:       inv.TaxCents,
		TotalCents:     inv.TotalCents,
		Currency:       inv.Currency,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		PaidAt:         inv.PaidAt,
		PeriodStart:    inv.PeriodStart,
		PeriodEnd:      inv.PeriodEnd,
		CreatedAt:      inv.CreatedAt,
	}
}

func toInvoiceResponses(invoices []domain.Invoice) []invoiceResponse {
	out := make([]invoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = toInvoiceResponse(&invoices[i])
	}
	return out
}

type paymentResponse struct {
	ID            uuid.UUID `json:"id"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toPaymentResponses(payments []domain.Payment) []paymentResponse {
	out := make([]paymentResponse, len(payments))
	for i, p := range payments {
		out[i] = paymentResponse{
			ID:            p.ID,
			InvoiceID:     p.InvoiceID,
			AmountCents:   p.AmountCents,
			Currency:      p.Currency,
			Status:        p.Status,
			FailureReason: p.FailureReason,
			CreatedAt:     p.CreatedAt,
		}
	}
	return out
}

type totalsResponse struct {
	PaidCents    int64 `json:"paid_cents"`
	PendingCents int64 `json:"pending_cents"`
	OverdueCents int64 `json:"overdue_cents"`
}

type summaryResponse struct {
	OrganizationID  uuid.UUID              `json:"organization_id"`
	Subscription    *subscriptionResponse  `json:"subscription,omitempty"`
	Plan            *planResponse          `json:"plan,omitempty"`
	DefaultMethod   *paymentMethodResponse `json:"default_payment_method,omitempty"`
	Totals          totalsResponse         `json:"totals"`
	PendingInvoices []invoiceResponse      `json:"pending_invoices"`
	RecentPayments  []paymentResponse      `json:"recent_payments"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

func toSummaryResponse(s *domain.BillingSummary) summaryResponse {
	resp := summaryResponse{
		OrganizationID:  s.OrganizationID,
		Totals:          totalsResponse(s.Totals),
		PendingInvoices: toInvoiceResponses(s.PendingInvoices),
		RecentPayments:  toPaymentResponses(s.RecentPayments),
		GeneratedAt:     s.GeneratedAt,
	}
	if s.Subscription != nil {
		sub := toSubscriptionResponse(s.Subscription)
		resp.Subscription = &sub
	}
	if s.Plan != nil {
		plan := toPlanResponse(s.Plan)
		resp.Plan = &plan
	}
	if s.DefaultMethod != nil {
		method := toPaymentMethodResponse(s.DefaultMethod)
		resp.DefaultMethod = &method
	}
	return resp
}
