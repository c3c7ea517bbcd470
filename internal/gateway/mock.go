package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock gateway for testing. It simulates successful
// flows without touching the Stripe API.
type MockProvider struct {
	// TokenizeFunc allows customizing tokenization behavior
	TokenizeFunc func(ctx context.Context, params TokenizeParams) (*Token, error)

	// ChargeFunc allows customizing charge behavior
	ChargeFunc func(ctx context.Context, params ChargeParams) (*ChargeResult, error)

	// CreateSubscriptionFunc allows customizing subscription creation behavior
	CreateSubscriptionFunc func(ctx context.Context, params CreateSubscriptionParams) (*RemoteSubscription, error)

	// UpdateSubscriptionFunc allows customizing plan change behavior
	UpdateSubscriptionFunc func(ctx context.Context, params UpdateSubscriptionParams) (*RemoteSubscription, error)

	// CancelSubscriptionFunc allows customizing cancellation behavior
	CancelSubscriptionFunc func(ctx context.Context, subscriptionID string, atPeriodEnd bool) error

	// RefundFunc allows customizing refund behavior
	RefundFunc func(ctx context.Context, params RefundParams) (*Refund, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string) (*Event, error)

	// Charges stores issued charges by charge id for test assertions
	Charges map[string]*ChargeResult

	// Subscriptions stores remote subscriptions by id
	Subscriptions map[string]*RemoteSubscription

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockProvider creates a new mock gateway.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Charges:       make(map[string]*ChargeResult),
		Subscriptions: make(map[string]*RemoteSubscription),
		CallLog:       []string{},
	}
}

// Tokenize returns a mock token with masked fields derived from input.
func (m *MockProvider) Tokenize(ctx context.Context, params TokenizeParams) (*Token, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Tokenize(%s)", params.Email))

	if m.TokenizeFunc != nil {
		return m.TokenizeFunc(ctx, params)
	}

	last4 := params.Number
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	return &Token{
		Token:    "pm_" + uuid.New().String()[:8],
		Brand:    "visa",
		Last4:    last4,
		ExpMonth: params.ExpMonth,
		ExpYear:  params.ExpYear,
	}, nil
}

// Charge records and returns a mock successful charge.
func (m *MockProvider) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Charge(%d, %s)", params.AmountCents, params.Currency))

	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, params)
	}

	result := &ChargeResult{
		ChargeID:    "pi_" + uuid.New().String()[:8],
		Status:      ChargeStatusSucceeded,
		AmountCents: params.AmountCents,
		Currency:    params.Currency,
		CreatedAt:   time.Now(),
	}
	m.Charges[result.ChargeID] = result
	return result, nil
}

// CreateSubscription returns a mock active subscription with a
// one-month period.
func (m *MockProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*RemoteSubscription, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateSubscription(%s)", params.PriceID))

	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, params)
	}

	now := time.Now()
	sub := &RemoteSubscription{
		ID:                 "sub_" + uuid.New().String()[:8],
		Status:             "active",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}
	if params.TrialDays > 0 {
		sub.Status = "trialing"
	}
	m.Subscriptions[sub.ID] = sub
	return sub, nil
}

// UpdateSubscription returns the stored subscription unchanged.
func (m *MockProvider) UpdateSubscription(ctx context.Context, params UpdateSubscriptionParams) (*RemoteSubscription, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("UpdateSubscription(%s, %s)", params.SubscriptionID, params.NewPriceID))

	if m.UpdateSubscriptionFunc != nil {
		return m.UpdateSubscriptionFunc(ctx, params)
	}

	sub, exists := m.Subscriptions[params.SubscriptionID]
	if !exists {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// CancelSubscription cancels the stored subscription.
func (m *MockProvider) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CancelSubscription(%s, %t)", subscriptionID, atPeriodEnd))

	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, subscriptionID, atPeriodEnd)
	}

	sub, exists := m.Subscriptions[subscriptionID]
	if !exists {
		return ErrSubscriptionNotFound
	}
	if atPeriodEnd {
		sub.CancelAtPeriodEnd = true
	} else {
		sub.Status = "canceled"
	}
	return nil
}

// Refund returns a mock successful refund.
func (m *MockProvider) Refund(ctx context.Context, params RefundParams) (*Refund, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Refund(%s, %d)", params.ChargeID, params.AmountCents))

	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, params)
	}

	charge, exists := m.Charges[params.ChargeID]
	if !exists {
		return nil, ErrChargeNotFound
	}
	amount := params.AmountCents
	if amount == 0 {
		amount = charge.AmountCents
	}
	return &Refund{
		ID:          "re_" + uuid.New().String()[:8],
		ChargeID:    params.ChargeID,
		AmountCents: amount,
		Status:      "succeeded",
		CreatedAt:   time.Now(),
	}, nil
}

// VerifyWebhookSignature always verifies successfully by default and
// returns an unknown event for an empty payload.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string) (*Event, error) {
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature)
	}

	return &Event{
		ID:      "evt_" + uuid.New().String()[:8],
		Kind:    EventUnknown,
		Created: time.Now(),
	}, nil
}
