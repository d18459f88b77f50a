package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/lolakitchen/chowbot-backend/internal/config"
	"github.com/lolakitchen/chowbot-backend/internal/handlers"
	"github.com/lolakitchen/chowbot-backend/internal/middleware"
	"github.com/lolakitchen/chowbot-backend/internal/services"
	"github.com/lolakitchen/chowbot-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, cfg *config.Config, processor *services.MessageProcessor, monitor *services.PaymentMonitor, sessions *services.SessionManager, notifier services.Notifier) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Lola's Kitchen Bot!",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":           "/health",
				"whatsapp_webhook": "/webhook/whatsapp",
				"paystack_webhook": "/webhook/paystack",
				"test_whatsapp":    "/test/whatsapp",
				"admin":            "/admin",
			},
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		storageType := "postgres"
		if os.Getenv("USE_MEMORY_STORE") == "true" {
			storageType = "memory"
		}
		return c.JSON(fiber.Map{
			"status":          "healthy",
			"version":         "1.0.0",
			"storage":         storageType,
			"active_sessions": sessions.ActiveCount(),
			"active_timers":   monitor.ActiveTimers(),
		})
	})

	whatsappHandler := handlers.NewWhatsAppHandler(processor, notifier)
	paystackHandler := handlers.NewPaystackHandler(monitor)
	adminHandler := handlers.NewAdminHandler(store, sessions, monitor, cfg)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// WhatsApp webhook - ENVIRONMENT-AWARE VALIDATION
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		// Development: Skip validation for ngrok
		webhooks.Post("/whatsapp", whatsappHandler.HandleWebhook)
		if os.Getenv("ENVIRONMENT") == "development" {
			println("⚠️  WhatsApp webhook validation DISABLED for development")
		}
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(), whatsappHandler.HandleWebhook)
	}

	// Paystack webhook - always signature-checked
	webhooks.Post("/paystack", middleware.ValidatePaystackSignature(cfg.PaystackSecretKey), paystackHandler.HandleWebhook)

	// ========== TEST ROUTES (Development Only) ==========
	if os.Getenv("ENVIRONMENT") == "development" {
		app.Post("/test/whatsapp", whatsappHandler.HandleTestWebhook)
	}

	// ========== ADMIN ROUTES ==========
	admin := app.Group("/admin")
	admin.Post("/login", adminHandler.Login)
	admin.Get("/analytics", middleware.RequireAdmin(cfg.AdminJWTSecret), adminHandler.Analytics)
}
