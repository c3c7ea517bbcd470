// Package gateway wraps the external payment gateway. It owns card
// tokenization, charging, remote subscription management, refunds, and
// webhook signature verification. Raw gateway errors never leave this
// package; they are translated into the typed taxonomy in errors.go so
// callers can tell a declined card from a transient outage.
package gateway

import (
	"context"
	"time"
)

// Event kinds reported by the gateway. The reconciler switches
// exhaustively over these; anything else maps to EventUnknown.
const (
	EventChargeSucceeded              = "charge.succeeded"
	EventChargeFailed                 = "charge.failed"
	EventSubscriptionPaymentSucceeded = "subscription.invoice.payment_succeeded"
	EventSubscriptionPaymentFailed    = "subscription.invoice.payment_failed"
	EventUnknown                      = "unknown"
)

// Event is a verified, normalized webhook event. Provider
// implementations translate their native event payloads into this
// shape so the reconciler never touches gateway SDK types.
type Event struct {
	// ID is the gateway's event id, used for log correlation.
	ID string

	// Kind is one of the Event* constants above.
	Kind string

	// RawType is the gateway's native event type string, kept for
	// logging unknown events.
	RawType string

	// Created is when the gateway recorded the event.
	Created time.Time

	// ChargeID is the external charge id for charge.* events.
	ChargeID string

	// SubscriptionID is the remote subscription id for subscription.* events.
	SubscriptionID string

	// FailureReason carries the gateway-supplied reason on failed events.
	FailureReason string

	// AmountCents and Currency describe the charged amount when present.
	AmountCents int64
	Currency    string
}

// Provider defines the outbound interface to the payment gateway.
// Implementations can use Stripe, Adyen, Braintree, etc.
type Provider interface {
	// Tokenize exchanges raw card details for an opaque token plus
	// masked display fields. Card data is never persisted locally.
	Tokenize(ctx context.Context, params TokenizeParams) (*Token, error)

	// Charge executes a one-off charge against a previously tokenized
	// payment method. The returned ChargeID is the durable idempotency
	// key for webhook reconciliation.
	Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error)

	// CreateSubscription creates the remote recurring subscription.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*RemoteSubscription, error)

	// UpdateSubscription moves the remote subscription to a new price.
	UpdateSubscription(ctx context.Context, params UpdateSubscriptionParams) (*RemoteSubscription, error)

	// CancelSubscription cancels remotely, either at period end or
	// immediately.
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error

	// Refund refunds a completed charge. AmountCents of 0 refunds the
	// full amount.
	Refund(ctx context.Context, params RefundParams) (*Refund, error)

	// VerifyWebhookSignature verifies an inbound webhook against the
	// shared signing secret and returns the normalized event. A
	// verification failure returns ErrInvalidWebhookSignature and no
	// event; callers must reject the request before any state mutation.
	VerifyWebhookSignature(payload []byte, signature string) (*Event, error)
}

// TokenizeParams contains parameters for tokenizing a card.
type TokenizeParams struct {
	Number   string
	ExpMonth int64
	ExpYear  int64
	CVC      string

	// Email is attached to the gateway-side customer record for receipts.
	Email string
}

// Token is the gateway's representation of a stored payment method.
type Token struct {
	// Token is the opaque reference used for later charges.
	Token string

	// Masked display fields, safe to persist and show to users.
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// ChargeParams contains parameters for a one-off charge.
type ChargeParams struct {
	// Token is the opaque payment method reference from Tokenize.
	Token string

	// AmountCents is the amount in smallest currency unit.
	AmountCents int64

	// Currency code (ISO 4217) - e.g. "usd"
	Currency string

	// Description appears on the customer's statement.
	Description string

	// Metadata for filtering and reporting (always include
	// organization_id and invoice_id).
	Metadata map[string]string

	// IdempotencyKey prevents duplicate charges on retry. Typically the
	// invoice id.
	IdempotencyKey string
}

// Charge statuses reported synchronously by the gateway.
const (
	ChargeStatusSucceeded = "succeeded"
	ChargeStatusPending   = "pending"
	ChargeStatusFailed    = "failed"
)

// ChargeResult is the gateway's immediate response to a charge. The
// status here is optimistic; the webhook-delivered outcome is
// authoritative.
type ChargeResult struct {
	ChargeID    string
	Status      string
	AmountCents int64
	Currency    string
	CreatedAt   time.Time
}

// CreateSubscriptionParams contains parameters for creating a remote subscription.
type CreateSubscriptionParams struct {
	// Token is the payment method charged each period.
	Token string

	// Email identifies the gateway-side customer.
	Email string

	// PriceID is the gateway's price reference for the plan.
	PriceID string

	// TrialDays delays the first charge when greater than zero.
	TrialDays int64

	// Metadata should include organization_id for webhook correlation.
	Metadata map[string]string
}

// UpdateSubscriptionParams contains parameters for a remote plan change.
type UpdateSubscriptionParams struct {
	SubscriptionID string
	NewPriceID     string
}

// RemoteSubscription is the gateway's view of a recurring subscription.
type RemoteSubscription struct {
	ID                 string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// RefundParams contains parameters for refunding a charge.
type RefundParams struct {
	ChargeID    string
	AmountCents int64  // 0 refunds the full amount
	Reason      string // "duplicate", "fraudulent", "requested_by_customer"
}

// Refund represents a completed or pending refund.
type Refund struct {
	ID          string
	ChargeID    string
	AmountCents int64
	Status      string
	CreatedAt   time.Time
}
