package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	defaultMaxRetries     = 2
	defaultTimeoutSeconds = 30
)

// StripeGateway implements Provider using the Stripe Go SDK.
type StripeGateway struct {
	config Config
	sc     *client.API
}

// NewStripeGateway creates a Stripe-backed gateway from explicit
// configuration. Credentials live on the returned value, never in
// package state.
func NewStripeGateway(config Config) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaultMaxRetries
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = defaultTimeoutSeconds
	}

	sc := &client.API{}
	sc.Init(config.APIKey, nil)

	return &StripeGateway{
		config: config,
		sc:     sc,
	}, nil
}

// Tokenize creates a Stripe PaymentMethod from raw card details and
// returns the opaque reference plus masked display fields.
func (g *StripeGateway) Tokenize(ctx context.Context, params TokenizeParams) (*Token, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	pmParams := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(params.Number),
			ExpMonth: stripe.Int64(params.ExpMonth),
			ExpYear:  stripe.Int64(params.ExpYear),
			CVC:      stripe.String(params.CVC),
		},
	}
	pmParams.Context = ctx

	var pm *stripe.PaymentMethod
	err := g.withRetry(ctx, func() error {
		var err error
		pm, err = g.sc.PaymentMethods.New(pmParams)
		return translateError(err)
	})
	if err != nil {
		return nil, err
	}

	token := &Token{Token: pm.ID}
	if pm.Card != nil {
		token.Brand = string(pm.Card.Brand)
		token.Last4 = pm.Card.Last4
		token.ExpMonth = pm.Card.ExpMonth
		token.ExpYear = pm.Card.ExpYear
	}
	return token, nil
}

// Charge confirms a PaymentIntent against the tokenized method. The
// idempotency key is forwarded to Stripe so a retried call cannot
// double-charge.
func (g *StripeGateway) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	piParams := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(params.AmountCents),
		Currency:      stripe.String(params.Currency),
		PaymentMethod: stripe.String(params.Token),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	if params.IdempotencyKey != "" {
		piParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}
	piParams.Context = ctx

	var pi *stripe.PaymentIntent
	err := g.withRetry(ctx, func() error {
		var err error
		pi, err = g.sc.PaymentIntents.New(piParams)
		return translateError(err)
	})
	if err != nil {
		return nil, err
	}

	return &ChargeResult{
		ChargeID:    pi.ID,
		Status:      chargeStatus(pi.Status),
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
		CreatedAt:   time.Unix(pi.Created, 0),
	}, nil
}

// CreateSubscription provisions the Stripe customer, attaches the
// payment method, and starts the remote subscription.
func (g *StripeGateway) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*RemoteSubscription, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	cusParams := &stripe.CustomerParams{Email: stripe.String(params.Email)}
	cusParams.Context = ctx
	customer, err := g.sc.Customers.New(cusParams)
	if err != nil {
		return nil, translateError(err)
	}

	attachParams := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customer.ID)}
	attachParams.Context = ctx
	if _, err := g.sc.PaymentMethods.Attach(params.Token, attachParams); err != nil {
		return nil, translateError(err)
	}

	subParams := &stripe.SubscriptionParams{
		Customer: stripe.String(customer.ID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(params.PriceID)},
		},
		DefaultPaymentMethod: stripe.String(params.Token),
	}
	if params.TrialDays > 0 {
		subParams.TrialPeriodDays = stripe.Int64(params.TrialDays)
	}
	for k, v := range params.Metadata {
		subParams.AddMetadata(k, v)
	}
	subParams.Context = ctx

	var sub *stripe.Subscription
	err = g.withRetry(ctx, func() error {
		var err error
		sub, err = g.sc.Subscriptions.New(subParams)
		return translateError(err)
	})
	if err != nil {
		return nil, err
	}
	return remoteSubscription(sub), nil
}

// UpdateSubscription swaps the subscription item to the new price.
// Proration is disabled remotely; the local ledger owns proration.
func (g *StripeGateway) UpdateSubscription(ctx context.Context, params UpdateSubscriptionParams) (*RemoteSubscription, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	existing, err := g.sc.Subscriptions.Get(params.SubscriptionID, getParams)
	if err != nil {
		return nil, translateError(err)
	}
	if existing.Items == nil || len(existing.Items.Data) == 0 {
		return nil, ErrSubscriptionNotFound
	}

	updateParams := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(existing.Items.Data[0].ID),
				Price: stripe.String(params.NewPriceID),
			},
		},
		ProrationBehavior: stripe.String("none"),
	}
	updateParams.Context = ctx

	var sub *stripe.Subscription
	err = g.withRetry(ctx, func() error {
		var err error
		sub, err = g.sc.Subscriptions.Update(params.SubscriptionID, updateParams)
		return translateError(err)
	})
	if err != nil {
		return nil, err
	}
	return remoteSubscription(sub), nil
}

// CancelSubscription cancels the remote subscription, either flagging
// it to lapse at period end or ending it immediately.
func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	return g.withRetry(ctx, func() error {
		var err error
		if atPeriodEnd {
			updateParams := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
			updateParams.Context = ctx
			_, err = g.sc.Subscriptions.Update(subscriptionID, updateParams)
		} else {
			cancelParams := &stripe.SubscriptionCancelParams{}
			cancelParams.Context = ctx
			_, err = g.sc.Subscriptions.Cancel(subscriptionID, cancelParams)
		}
		return translateError(err)
	})
}

// Refund refunds a charge, fully when AmountCents is 0.
func (g *StripeGateway) Refund(ctx context.Context, params RefundParams) (*Refund, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	refundParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.ChargeID),
	}
	if params.AmountCents > 0 {
		refundParams.Amount = stripe.Int64(params.AmountCents)
	}
	if params.Reason != "" {
		refundParams.Reason = stripe.String(params.Reason)
	}
	refundParams.Context = ctx

	var refund *stripe.Refund
	err := g.withRetry(ctx, func() error {
		var err error
		refund, err = g.sc.Refunds.New(refundParams)
		return translateError(err)
	})
	if err != nil {
		return nil, err
	}

	return &Refund{
		ID:          refund.ID,
		ChargeID:    params.ChargeID,
		AmountCents: refund.Amount,
		Status:      string(refund.Status),
		CreatedAt:   time.Unix(refund.Created, 0),
	}, nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against the
// signing secret and normalizes the event. Verification failure is the
// only error here; unknown event types still verify and come back as
// EventUnknown so the caller can ack them.
func (g *StripeGateway) VerifyWebhookSignature(payload []byte, signature string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signature, g.config.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return normalizeEvent(&stripeEvent)
}

// withTimeout bounds a single gateway call.
func (g *StripeGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(g.config.TimeoutSeconds)*time.Second)
}

// withRetry retries fn for transient failures only. Declined charges
// and other permanent errors are returned on the first attempt.
func (g *StripeGateway) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) || attempt >= g.config.MaxRetries {
			return err
		}
		backoff := time.Duration(attempt+1) * 500 * time.Millisecond
		select {
		case <-ctx.Done():
			return &TransientError{Message: "canceled while retrying", Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}
}

// chargeStatus maps Stripe's payment intent status to the gateway's
// three-valued charge status.
func chargeStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return ChargeStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return ChargeStatusFailed
	default:
		// requires_action, processing, etc. resolve via webhook
		return ChargeStatusPending
	}
}

// remoteSubscription maps a Stripe subscription to the provider-neutral
// shape. Period bounds live on the subscription item.
func remoteSubscription(sub *stripe.Subscription) *RemoteSubscription {
	rs := &RemoteSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		rs.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0)
		rs.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0)
	}
	return rs
}

// normalizeEvent translates Stripe's native event taxonomy into the
// closed kind set the reconciler switches over.
func normalizeEvent(stripeEvent *stripe.Event) (*Event, error) {
	event := &Event{
		ID:      stripeEvent.ID,
		RawType: string(stripeEvent.Type),
		Created: time.Unix(stripeEvent.Created, 0),
	}

	switch stripeEvent.Type {
	case "payment_intent.succeeded":
		event.Kind = EventChargeSucceeded
		return event, parsePaymentIntent(stripeEvent, event)

	case "payment_intent.payment_failed":
		event.Kind = EventChargeFailed
		return event, parsePaymentIntent(stripeEvent, event)

	case "charge.succeeded":
		event.Kind = EventChargeSucceeded
		return event, parseCharge(stripeEvent, event)

	case "charge.failed":
		event.Kind = EventChargeFailed
		return event, parseCharge(stripeEvent, event)

	case "invoice.payment_succeeded":
		event.Kind = EventSubscriptionPaymentSucceeded
		return event, parseInvoice(stripeEvent, event)

	case "invoice.payment_failed":
		event.Kind = EventSubscriptionPaymentFailed
		return event, parseInvoice(stripeEvent, event)

	default:
		event.Kind = EventUnknown
		return event, nil
	}
}

func parsePaymentIntent(stripeEvent *stripe.Event, event *Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(stripeEvent.Data.Raw, &pi); err != nil {
		return fmt.Errorf("gateway: parsing payment intent event %s: %w", stripeEvent.ID, err)
	}
	event.ChargeID = pi.ID
	event.AmountCents = pi.Amount
	event.Currency = string(pi.Currency)
	if pi.LastPaymentError != nil {
		event.FailureReason = string(pi.LastPaymentError.Code)
		if event.FailureReason == "" {
			event.FailureReason = pi.LastPaymentError.Msg
		}
	}
	return nil
}

func parseCharge(stripeEvent *stripe.Event, event *Event) error {
	var ch stripe.Charge
	if err := json.Unmarshal(stripeEvent.Data.Raw, &ch); err != nil {
		return fmt.Errorf("gateway: parsing charge event %s: %w", stripeEvent.ID, err)
	}
	// The local ledger records the payment intent id as the charge id.
	if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
		event.ChargeID = ch.PaymentIntent.ID
	} else {
		event.ChargeID = ch.ID
	}
	event.AmountCents = ch.Amount
	event.Currency = string(ch.Currency)
	if ch.FailureCode != "" {
		event.FailureReason = ch.FailureCode
	} else if ch.FailureMessage != "" {
		event.FailureReason = ch.FailureMessage
	}
	return nil
}

func parseInvoice(stripeEvent *stripe.Event, event *Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(stripeEvent.Data.Raw, &inv); err != nil {
		return fmt.Errorf("gateway: parsing invoice event %s: %w", stripeEvent.ID, err)
	}
	event.AmountCents = inv.AmountPaid
	event.Currency = string(inv.Currency)
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		event.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return nil
}

// translateError converts Stripe SDK errors into the gateway taxonomy.
// Card declines and other 4xx rejections are permanent; rate limits,
// API errors, and plain network failures are transient.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.Type == stripe.ErrorTypeCard || string(se.DeclineCode) != "":
			return &DeclinedError{
				Code:        string(se.Code),
				DeclineCode: string(se.DeclineCode),
				Message:     se.Msg,
				Err:         err,
			}
		case se.Code == stripe.ErrorCodeAmountTooSmall:
			return ErrAmountTooSmall
		case se.Code == stripe.ErrorCodeRateLimit,
			se.Type == stripe.ErrorTypeAPI,
			se.HTTPStatusCode >= 500:
			return &TransientError{Message: se.Msg, Err: err}
		default:
			// invalid_request and friends: permanent, but not a decline
			return &DeclinedError{Code: string(se.Code), Message: se.Msg, Err: err}
		}
	}

	// No structured Stripe error means the request never completed.
	return &TransientError{Message: err.Error(), Err: err}
}
