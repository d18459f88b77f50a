package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lolakitchen/chowbot-backend/internal/services"
)

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	processor *services.MessageProcessor
	notifier  services.Notifier
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(processor *services.MessageProcessor, notifier services.Notifier) *WhatsAppHandler {
	return &WhatsAppHandler{
		processor: processor,
		notifier:  notifier,
	}
}

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid  string `form:"MessageSid"`
	AccountSid  string `form:"AccountSid"`
	From        string `form:"From"` // whatsapp:+2348012345678
	To          string `form:"To"`
	Body        string `form:"Body"`
	ProfileName string `form:"ProfileName"`
	Latitude    string `form:"Latitude"`  // set when the user shares a location
	Longitude   string `form:"Longitude"` //
	NumMedia    string `form:"NumMedia"`
}

// HandleWebhook processes incoming WhatsApp messages
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	from := strings.TrimPrefix(payload.From, "whatsapp:")
	if from == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	// Shared locations arrive with coordinates and an empty body.
	raw := payload.Body
	if payload.Latitude != "" && payload.Longitude != "" {
		raw = payload.Latitude + "," + payload.Longitude
	}
	if raw == "" {
		// Status callbacks and media-only messages are acknowledged silently.
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📱 WhatsApp message from %s: %s", from, payload.Body)

	reply := h.processor.Handle(from, payload.Body, raw, payload.ProfileName)
	if reply == nil || (reply.Text == "" && len(reply.Buttons) == 0) {
		return c.SendStatus(fiber.StatusOK)
	}

	if h.notifier != nil {
		var err error
		if len(reply.Buttons) > 0 {
			err = h.notifier.SendButtons(from, reply.Text, reply.Buttons)
		} else {
			err = h.notifier.SendText(from, reply.Text)
		}
		if err != nil {
			log.Printf("❌ Failed to send WhatsApp response to %s: %v", from, err)
		}
	} else {
		log.Printf("📤 Response (not sent - notifier not configured): %s", reply.Text)
	}

	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload lets developers exercise the bot without Twilio.
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

// HandleTestWebhook processes test messages (for development)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	log.Printf("🧪 Test webhook from %s: %s", payload.From, payload.Message)

	reply := h.processor.Handle(payload.From, payload.Message, payload.Message, payload.Name)
	return c.JSON(fiber.Map{
		"reply":   reply.Text,
		"buttons": reply.Buttons,
	})
}
