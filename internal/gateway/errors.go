package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("gateway: invalid webhook signature")

	// ErrInvalidAPIKey is returned when the gateway API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("gateway: invalid or missing API key")

	// ErrChargeNotFound is returned when the referenced charge does not exist remotely.
	ErrChargeNotFound = errors.New("gateway: charge not found")

	// ErrSubscriptionNotFound is returned when the remote subscription does not exist.
	ErrSubscriptionNotFound = errors.New("gateway: subscription not found")

	// ErrAmountTooSmall is returned when the amount is below the gateway's minimum.
	ErrAmountTooSmall = errors.New("gateway: amount below gateway minimum")
)

// DeclinedError is a permanent failure: the card was declined or the
// request was otherwise rejected in a way that retrying cannot fix.
// Callers must never retry a declined charge.
type DeclinedError struct {
	Code        string // gateway error code, e.g. "card_declined"
	DeclineCode string // decline reason from the card network, if any
	Message     string // human-readable message, safe to log
	Err         error  // original SDK error
}

func (e *DeclinedError) Error() string {
	if e.DeclineCode != "" {
		return fmt.Sprintf("gateway: charge declined: %s (code: %s, decline: %s)", e.Message, e.Code, e.DeclineCode)
	}
	return fmt.Sprintf("gateway: charge declined: %s (code: %s)", e.Message, e.Code)
}

func (e *DeclinedError) Unwrap() error {
	return e.Err
}

// TransientError is a temporary failure: timeout, rate limit, or a
// gateway-side 5xx. Safe to retry with backoff.
type TransientError struct {
	Message string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("gateway: transient failure: %s", e.Message)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsDeclined reports whether err is a permanent card decline.
func IsDeclined(err error) bool {
	var de *DeclinedError
	return errors.As(err, &de)
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
