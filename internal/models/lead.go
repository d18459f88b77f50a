package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LeadEvent captures funnel activity for conversion analytics.
type LeadEvent struct {
	gorm.Model
	EventID     string          `json:"event_id" gorm:"uniqueIndex"` // uuid
	PhoneNumber string          `json:"phone_number" gorm:"index"`
	UserName    string          `json:"user_name"`
	EventType   string          `json:"event_type"` // interaction, cart_activity, conversion
	OrderID     uint            `json:"order_id"`
	OrderValue  decimal.Decimal `json:"order_value" gorm:"type:numeric(12,2)"`
	CartSize    int             `json:"cart_size"`
}

// Lead event type constants
const (
	LeadEventInteraction  = "interaction"
	LeadEventCartActivity = "cart_activity"
	LeadEventConversion   = "conversion"
)
