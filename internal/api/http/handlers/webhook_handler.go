package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/snoutos/message-router/internal/service"
	"github.com/snoutos/message-router/internal/sms"
)

// WebhookHandler receives provider inbound deliveries. It always answers
// 200 with TwiML: a non-2xx here would make the provider retry and
// amplify whatever just went wrong.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Inbound handles POST /webhooks/twilio/inbound.
func (h *WebhookHandler) Inbound(c *fiber.Ctx) error {
	result := h.webhooks.HandleInbound(
		c.UserContext(),
		string(c.Body()),
		c.Get("X-Twilio-Signature"),
	)
	c.Set(fiber.HeaderContentType, sms.TwiMLContentType)
	return c.SendString(sms.TwiML(result.Reply))
}
