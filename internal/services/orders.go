package services

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/lolakitchen/chowbot-backend/internal/config"
	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/storage"
)

// OrderTotals breaks a cart down into the charged components.
type OrderTotals struct {
	Subtotal      decimal.Decimal
	DeliveryFee   decimal.Decimal
	ServiceCharge decimal.Decimal
	Total         decimal.Decimal
}

// OrderService creates orders from carts and owns pricing.
type OrderService struct {
	store storage.Store
	cfg   *config.Config
}

// NewOrderService creates a new order service
func NewOrderService(store storage.Store, cfg *config.Config) *OrderService {
	return &OrderService{store: store, cfg: cfg}
}

// Totals computes subtotal, flat delivery fee, percentage service charge and
// the grand total for a cart.
func (os *OrderService) Totals(cart []CartItem) OrderTotals {
	subtotal := decimal.Zero
	for _, item := range cart {
		subtotal = subtotal.Add(item.Subtotal())
	}
	serviceCharge := subtotal.Mul(os.cfg.ServiceChargePercent).Div(decimal.NewFromInt(100)).Round(2)
	total := subtotal.Add(os.cfg.DeliveryFee).Add(serviceCharge)
	return OrderTotals{
		Subtotal:      subtotal,
		DeliveryFee:   os.cfg.DeliveryFee,
		ServiceCharge: serviceCharge,
		Total:         total,
	}
}

// CreateFromSession persists a pending order for the session's cart. Items
// that match the catalog carry their product id; unmatched items are kept on
// the order with product id zero so the kitchen still sees them.
func (os *OrderService) CreateFromSession(session *Session, note string) (*models.Order, error) {
	if len(session.Cart) == 0 {
		return nil, fmt.Errorf("cannot create order with empty cart")
	}

	totals := os.Totals(session.Cart)
	order := &models.Order{
		CustomerID:    session.UserPhone,
		Address:       session.Address,
		Status:        models.OrderStatusPendingPayment,
		TotalAmount:   totals.Subtotal,
		ServiceCharge: totals.ServiceCharge,
		DeliveryFee:   totals.DeliveryFee,
		CustomersNote: note,
	}

	for _, item := range session.Cart {
		productID := item.ProductID
		if productID == 0 {
			if product, err := os.store.GetProductByName(item.Name); err == nil {
				productID = product.ID
			} else {
				log.Printf("Order item %q has no catalog match", item.Name)
			}
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: productID,
			ItemName:  item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}

	created, err := os.store.CreateOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	log.Printf("Order %d created for %s (%d items)", created.ID, session.UserPhone, len(created.Items))
	return created, nil
}

// AvailableProducts lists the catalog items currently on sale.
func (os *OrderService) AvailableProducts() ([]*models.Product, error) {
	return os.store.GetAvailableProducts()
}

// ProductByName looks up a catalog item case-insensitively.
func (os *OrderService) ProductByName(name string) (*models.Product, error) {
	return os.store.GetProductByName(name)
}

// UserDetail fetches the stored profile for a phone number.
func (os *OrderService) UserDetail(phone string) (*models.UserDetail, error) {
	return os.store.GetUserDetail(phone)
}

// SaveUserDetail upserts a customer profile.
func (os *OrderService) SaveUserDetail(detail *models.UserDetail) error {
	return os.store.SaveUserDetail(detail)
}

// SaveFeedback records a post-order rating.
func (os *OrderService) SaveFeedback(fb *models.Feedback) error {
	return os.store.SaveFeedback(fb)
}

// SaveEnquiry records a support enquiry.
func (os *OrderService) SaveEnquiry(e *models.Enquiry) error {
	return os.store.SaveEnquiry(e)
}

// SaveComplaint records a complaint ticket.
func (os *OrderService) SaveComplaint(c *models.Complaint) error {
	return os.store.SaveComplaint(c)
}

// Store exposes the underlying store for collaborators that need raw access.
func (os *OrderService) Store() storage.Store {
	return os.store
}

// Config exposes runtime configuration to handlers.
func (os *OrderService) Config() *config.Config {
	return os.cfg
}
