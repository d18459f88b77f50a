package handlers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/lolakitchen/chowbot-backend/internal/services"
)

// PaystackHandler receives payment gateway webhooks.
type PaystackHandler struct {
	monitor *services.PaymentMonitor
}

// NewPaystackHandler creates a new Paystack webhook handler
func NewPaystackHandler(monitor *services.PaymentMonitor) *PaystackHandler {
	return &PaystackHandler{monitor: monitor}
}

// HandleWebhook processes Paystack events. The signature has already been
// checked by middleware; the body is trusted from here on. Processing is
// fire-and-forget so Paystack gets its 200 quickly and does not retry.
func (h *PaystackHandler) HandleWebhook(c *fiber.Ctx) error {
	var event services.WebhookEvent
	if err := json.Unmarshal(c.Body(), &event); err != nil {
		log.Printf("Error parsing Paystack webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	log.Printf("💰 Paystack event %s for reference %s", event.Event, event.Data.Reference)

	go h.monitor.HandleWebhook(event)

	return c.SendStatus(fiber.StatusOK)
}
