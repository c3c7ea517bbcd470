package gateway

import (
	"errors"
	"strings"
)

// Config contains configuration for the Stripe-backed gateway.
// It is passed explicitly at construction time; there is no package
// level credential state.
type Config struct {
	// APIKey is the secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	// Used to verify webhook signatures on every inbound event.
	WebhookSecret string

	// MaxRetries is the maximum number of retries for transient failures.
	// Declined charges are never retried. Default: 2
	MaxRetries int

	// TimeoutSeconds is the per-call timeout for gateway API calls.
	// Default: 30
	TimeoutSeconds int
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("gateway: API key is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("gateway: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *Config) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_")
}
