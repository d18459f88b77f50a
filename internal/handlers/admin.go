package handlers

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/lolakitchen/chowbot-backend/internal/config"
	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/services"
	"github.com/lolakitchen/chowbot-backend/internal/storage"
)

// AdminHandler serves the operator dashboard API.
type AdminHandler struct {
	store    storage.Store
	sessions *services.SessionManager
	monitor  *services.PaymentMonitor
	cfg      *config.Config
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.Store, sessions *services.SessionManager, monitor *services.PaymentMonitor, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		store:    store,
		sessions: sessions,
		monitor:  monitor,
		cfg:      cfg,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login exchanges the admin password for a short-lived JWT.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" || req.Password != password {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	claims := jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(12 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.AdminJWTSecret))
	if err != nil {
		log.Printf("Failed to sign admin token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not issue token"})
	}

	return c.JSON(fiber.Map{"token": signed})
}

// Analytics summarizes the lead funnel and live monitoring state.
func (h *AdminHandler) Analytics(c *fiber.Ctx) error {
	interactions, err := h.store.GetLeadEvents(models.LeadEventInteraction)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load lead events"})
	}
	carts, err := h.store.GetLeadEvents(models.LeadEventCartActivity)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load lead events"})
	}
	conversions, err := h.store.GetLeadEvents(models.LeadEventConversion)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load lead events"})
	}

	revenue := decimal.Zero
	for _, ev := range conversions {
		revenue = revenue.Add(ev.OrderValue)
	}

	conversionRate := 0.0
	if len(interactions) > 0 {
		conversionRate = float64(len(conversions)) / float64(len(interactions)) * 100
	}

	return c.JSON(fiber.Map{
		"funnel": fiber.Map{
			"interactions":    len(interactions),
			"cart_activity":   len(carts),
			"conversions":     len(conversions),
			"conversion_rate": conversionRate,
		},
		"revenue":         revenue,
		"active_sessions": h.sessions.ActiveCount(),
		"active_timers":   h.monitor.ActiveTimers(),
	})
}
