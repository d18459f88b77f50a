package storage

import (
	"errors"
	"sync"

	"github.com/lolakitchen/chowbot-backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInsufficientStock is returned (possibly wrapped) when an inventory
// reduction would take a product below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

var (
	storeInstance Store
	storeMu       sync.Mutex
)

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeMu.Lock()
	defer storeMu.Unlock()
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	storeMu.Lock()
	defer storeMu.Unlock()
	return storeInstance
}

// PaymentMeta carries payment details recorded alongside a status update.
type PaymentMeta struct {
	PaymentReference  string
	PaymentMethodType string
	VerificationBy    string
}

// Store defines the interface for storage operations
type Store interface {
	// Order operations
	CreateOrder(order *models.Order) (*models.Order, error)
	GetOrder(orderID uint) (*models.Order, error)
	GetOrderByReference(reference string) (*models.Order, error)
	// UpdateOrderStatus moves an order out of pending_payment. The write is
	// conditional: it succeeds only while the current status is
	// pending_payment, which is what keeps racing confirmation channels from
	// double-processing one order.
	UpdateOrderStatus(orderID uint, status string, meta *PaymentMeta) (bool, error)
	GetOrderItems(orderID uint) ([]*models.OrderItem, error)

	// Inventory operations
	ReduceInventory(orderID uint, items []*models.OrderItem) error
	RestoreInventory(orderID uint, items []*models.OrderItem) error
	CheckLowStock(productID uint, threshold int) (bool, error)

	// Product catalog
	GetProduct(productID uint) (*models.Product, error)
	GetProductByName(name string) (*models.Product, error)
	GetAvailableProducts() ([]*models.Product, error)

	// User profile operations
	GetUserDetail(phone string) (*models.UserDetail, error)
	SaveUserDetail(detail *models.UserDetail) error

	// Feedback operations
	SaveFeedback(fb *models.Feedback) error

	// Lead analytics operations
	SaveLeadEvent(ev *models.LeadEvent) error
	GetLeadEvents(eventType string) ([]*models.LeadEvent, error)

	// Support operations
	SaveEnquiry(e *models.Enquiry) error
	SaveComplaint(c *models.Complaint) error
}
