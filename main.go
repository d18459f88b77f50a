package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/lolakitchen/chowbot-backend/database"
	"github.com/lolakitchen/chowbot-backend/internal/config"
	"github.com/lolakitchen/chowbot-backend/internal/jobs"
	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/routes"
	"github.com/lolakitchen/chowbot-backend/internal/services"
	"github.com/lolakitchen/chowbot-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	cfg := config.Load()

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Product{},
			&models.Order{},
			&models.OrderItem{},
			&models.UserDetail{},
			&models.Feedback{},
			&models.LeadEvent{},
			&models.Enquiry{},
			&models.Complaint{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}
	storage.SetStore(store)

	// Outbound messaging
	notifier := services.NewTwilioNotifier()
	services.SetNotifier(notifier)

	// Core services
	sessionManager := services.NewSessionManager(cfg.SessionTimeout, cfg.FreshResetGrace)
	services.SetSessionManager(sessionManager)

	leadTracker := services.NewLeadTracker(store)
	orderService := services.NewOrderService(store, cfg)
	gateway := services.NewPaystackClient(cfg.PaystackSecretKey, cfg.CallbackBaseURL)

	processor := services.NewMessageProcessor(sessionManager, orderService, leadTracker)
	monitor := services.NewPaymentMonitor(store, gateway, notifier, sessionManager, leadTracker, cfg)
	processor.SetPaymentMonitor(monitor)

	// Background housekeeping
	cleanupJob := jobs.NewSessionCleanupJob(sessionManager, monitor)
	cleanupJob.Start()

	log.Println("✅ All services initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Lola's Kitchen Bot v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, store, cfg, processor, monitor, sessionManager, notifier)

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping cleanup job...")
		cleanupJob.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 Lola's Kitchen Bot starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", storageType())
	log.Printf("💳 Paystack: %s", configuredLabel(cfg.PaystackSecretKey))
	log.Printf("📱 Twilio: %s", configuredLabel(os.Getenv("TWILIO_ACCOUNT_SID")))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + cfg.Port))
}

func storageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func configuredLabel(value string) string {
	if value == "" {
		return "Not configured"
	}
	return "Configured"
}
