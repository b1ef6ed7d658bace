package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/metrics"
	"github.com/gigstage/settlement_api/internal/service"
	"github.com/gigstage/settlement_api/internal/utils"
)

// WebhookHandler receives gateway callbacks. The raw body is read before any
// parsing because the signature covers the exact bytes on the wire.
type WebhookHandler struct {
	webhookService *service.WebhookService
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(webhookService *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// HandlePayment handles POST /webhooks/payment
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	h.handle(c, "payment", h.webhookService.HandlePaymentEvent)
}

// HandlePayout handles POST /webhooks/payout
func (h *WebhookHandler) HandlePayout(c *gin.Context) {
	h.handle(c, "payout", h.webhookService.HandlePayoutEvent)
}

// HandleDispute handles POST /webhooks/dispute
func (h *WebhookHandler) HandleDispute(c *gin.Context) {
	h.handle(c, "dispute", h.webhookService.HandleDisputeEvent)
}

func (h *WebhookHandler) handle(c *gin.Context, source string, process func(ctx context.Context, raw []byte, signature, userAgent string) (string, error)) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(source, "rejected").Inc()
		c.JSON(400, gin.H{"error": "Invalid body"})
		return
	}

	signature := c.GetHeader("X-Gateway-Signature")
	outcome, err := process(c.Request.Context(), body, signature, c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrSignatureInvalid):
			metrics.WebhookEventsTotal.WithLabelValues(source, "rejected").Inc()
			log.Warn().Str("source", source).Str("ip", c.ClientIP()).Msg("webhook signature rejected")
			c.JSON(401, gin.H{"error": "Invalid signature"})
		case errors.Is(err, utils.ErrInvalidArgument):
			metrics.WebhookEventsTotal.WithLabelValues(source, "rejected").Inc()
			c.JSON(400, gin.H{"error": "Invalid payload"})
		default:
			metrics.WebhookEventsTotal.WithLabelValues(source, "failed").Inc()
			log.Error().Err(err).Str("source", source).Msg("webhook processing failed")
			// Non-2xx so the gateway redelivers; the idempotency log makes
			// the retry safe.
			c.JSON(500, gin.H{"error": "Processing failed"})
		}
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(source, outcome).Inc()
	c.JSON(200, gin.H{"received": true, "outcome": outcome})
}
