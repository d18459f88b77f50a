package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order represents one checkout attempt. Exactly one payment reference maps
// to exactly one order; status only moves forward out of pending_payment.
type Order struct {
	gorm.Model
	CustomerID string `json:"customer_id" gorm:"index"` // phone number of the buyer
	Address    string `json:"address"`

	Status string `json:"status" gorm:"index"` // pending_payment, confirmed, cancelled, expired

	// Amounts in naira. TotalAmount is the subtotal of the line items;
	// delivery fee and service charge are added on top at payment time.
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2)"`
	ServiceCharge decimal.Decimal `json:"service_charge" gorm:"type:numeric(12,2)"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee" gorm:"type:numeric(12,2)"`

	// Unique by construction (PAY-{order_id}); not a unique index because
	// orders exist briefly without a reference before link creation.
	PaymentReference  string `json:"payment_reference" gorm:"index"`
	PaymentMethodType string `json:"payment_method_type"`
	VerificationBy    string `json:"verification_by"` // automatic, manual, webhook

	CustomersNote string `json:"customers_note"`

	InventoryReduced bool `json:"inventory_reduced"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID"`

	ConfirmedAt *time.Time `json:"confirmed_at"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	gorm.Model
	OrderID   uint            `json:"order_id" gorm:"index"`
	ProductID uint            `json:"product_id"` // 0 when the product could not be resolved
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2)"`
	Subtotal  decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2)"`
}

// Order status constants
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusCancelled      = "cancelled"
	OrderStatusExpired        = "expired"
)

// IsTerminal reports whether the status permits no further transitions.
func IsTerminal(status string) bool {
	return status == OrderStatusConfirmed ||
		status == OrderStatusCancelled ||
		status == OrderStatusExpired
}
