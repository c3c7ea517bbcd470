// Package webhook receives asynchronous payment gateway notifications
// and feeds them to the reconciler. The contract with the gateway is
// strict: a bad signature is the only condition that returns a non-2xx
// status. Processing failures are logged and acknowledged so the
// gateway does not retry events we cannot handle anyway.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/gateway"
	"github.com/strandhq/billing/internal/handler"
	"github.com/strandhq/billing/internal/middleware"
	"github.com/strandhq/billing/internal/telemetry"
)

// signatureHeader carries the gateway's payload signature.
const signatureHeader = "Gateway-Signature"

// EventProcessor applies a verified gateway event to local billing state.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *gateway.Event) error
}

// GatewayHandler handles inbound payment gateway webhook requests.
type GatewayHandler struct {
	provider  gateway.Provider
	processor EventProcessor
}

// NewGatewayHandler creates a webhook handler.
func NewGatewayHandler(provider gateway.Provider, processor EventProcessor) *GatewayHandler {
	return &GatewayHandler{
		provider:  provider,
		processor: processor,
	}
}

// HandleWebhook processes an incoming gateway webhook event.
//
// Register under POST /webhooks/gateway. Signature verification happens
// before anything else touches the payload; an invalid signature is
// rejected with 400 so a forged request never reaches the reconciler.
func (h *GatewayHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := middleware.GetLogger(r.Context())

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read webhook payload", "error", err)
		// The body never arrived intact; acknowledging would be wrong
		// but so is blaming the signature. Treat it as a bad request.
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.read", "Error reading request body"))
		return
	}

	signature := r.Header.Get(signatureHeader)

	event, err := h.provider.VerifyWebhookSignature(payload, signature)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidWebhookSignature) {
			logger.Warn("webhook signature verification failed",
				"payload_bytes", len(payload),
				"signature_present", signature != "")
			if telemetry.Business != nil {
				telemetry.Business.WebhookFailed.WithLabelValues("unknown", "bad_signature").Inc()
			}
			handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.verify", "Invalid signature"))
			return
		}

		// Verified but unparseable. Acknowledge so the gateway stops
		// retrying a payload we will never understand.
		logger.Error("failed to parse verified webhook payload", "error", err)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues("unknown", "processing").Inc()
		}
		acknowledge(w)
		return
	}

	logger = logger.With("event_id", event.ID, "event_type", event.RawType)
	logger.Info("webhook event received", "kind", event.Kind)

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(event.Kind).Inc()
	}

	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.WithLabelValues(event.Kind).Observe(time.Since(start).Seconds())
		}
	}()

	if err := h.processor.ProcessEvent(r.Context(), event); err != nil {
		logger.Error("webhook event processing failed", "error", err)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(event.Kind, "processing").Inc()
		}
		// Acknowledge anyway. The event is logged for investigation and
		// a retry from the gateway would hit the same failure.
		acknowledge(w)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(event.Kind).Inc()
	}

	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}
