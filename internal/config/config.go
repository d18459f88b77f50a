package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration loaded from the environment.
type Config struct {
	// Session timeouts
	SessionTimeout   time.Duration // standard inactivity timeout
	PaidSessionHours int           // extended timeout granted after a paid order
	FreshResetGrace  time.Duration // window to suppress duplicate greetings

	// Payment monitoring
	PollInterval    time.Duration
	PollMaxAttempts int
	ReminderAttempt int

	// Order pricing
	DeliveryFee          decimal.Decimal // flat fee in naira
	ServiceChargePercent decimal.Decimal // percentage of subtotal

	// Inventory
	LowStockThreshold int

	// Paystack
	PaystackSecretKey string
	CallbackBaseURL   string

	// Operator notifications
	MerchantPhone string

	// Admin API
	AdminJWTSecret string

	Port string
}

// Load reads configuration from environment variables, applying defaults
// that match production behaviour.
func Load() *Config {
	cfg := &Config{
		SessionTimeout:   time.Duration(envInt("SESSION_TIMEOUT", 3000)) * time.Second,
		PaidSessionHours: envInt("PAID_SESSION_HOURS", 24),
		FreshResetGrace:  2 * time.Second,

		PollInterval:    time.Duration(envInt("PAYMENT_POLL_INTERVAL", 60)) * time.Second,
		PollMaxAttempts: envInt("PAYMENT_POLL_MAX_ATTEMPTS", 15),
		ReminderAttempt: 5,

		DeliveryFee:          envDecimal("DELIVERY_FEE", "500"),
		ServiceChargePercent: envDecimal("SERVICE_CHARGE_PERCENT", "2.5"),

		LowStockThreshold: envInt("LOW_STOCK_THRESHOLD", 5),

		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		CallbackBaseURL:   os.Getenv("CALLBACK_BASE_URL"),
		MerchantPhone:     os.Getenv("MERCHANT_PHONE"),
		AdminJWTSecret:    os.Getenv("ADMIN_JWT_SECRET"),

		Port: envString("PORT", "8080"),
	}

	if cfg.PaystackSecretKey == "" {
		log.Println("⚠️  PAYSTACK_SECRET_KEY not set - payment features will be limited")
	}
	if cfg.MerchantPhone == "" {
		log.Println("⚠️  MERCHANT_PHONE not set - operator notifications disabled")
	}

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid value for %s (%q), using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func envDecimal(key, fallback string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		log.Printf("Invalid value for %s (%q), using default %s", key, v, fallback)
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}
