package middleware

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"log"

	"github.com/gofiber/fiber/v2"
)

// ValidatePaystackSignature verifies the x-paystack-signature header:
// HMAC-SHA512 of the raw body keyed with the secret key. Requests that fail
// the check never reach the webhook handler.
func ValidatePaystackSignature(secretKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secretKey == "" {
			log.Println("⚠️  Paystack secret not configured, rejecting webhook")
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		signature := c.Get("x-paystack-signature")
		if signature == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		mac := hmac.New(sha512.New, []byte(secretKey))
		mac.Write(c.Body())
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(signature), []byte(expected)) {
			log.Println("🚫 Paystack webhook signature mismatch")
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		return c.Next()
	}
}
