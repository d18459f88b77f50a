package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lolakitchen/chowbot-backend/internal/models"
)

// DatabaseStore implements Store using GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed storage
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Order operations

func (d *DatabaseStore) CreateOrder(order *models.Order) (*models.Order, error) {
	if order.Status == "" {
		order.Status = models.OrderStatusPendingPayment
	}
	if err := d.db.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

func (d *DatabaseStore) GetOrder(orderID uint) (*models.Order, error) {
	var order models.Order
	err := d.db.Preload("Items").First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DatabaseStore) GetOrderByReference(reference string) (*models.Order, error) {
	var order models.Order
	err := d.db.Preload("Items").Where("payment_reference = ?", reference).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DatabaseStore) UpdateOrderStatus(orderID uint, status string, meta *PaymentMeta) (bool, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if meta != nil {
		if meta.PaymentReference != "" {
			updates["payment_reference"] = meta.PaymentReference
		}
		if meta.PaymentMethodType != "" {
			updates["payment_method_type"] = meta.PaymentMethodType
		}
		if meta.VerificationBy != "" {
			updates["verification_by"] = meta.VerificationBy
		}
	}
	if status == models.OrderStatusConfirmed {
		updates["confirmed_at"] = time.Now()
	}

	// The WHERE clause on status makes this a compare-and-swap: whichever
	// confirmation channel runs first wins, everyone else sees zero rows.
	result := d.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPendingPayment).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (d *DatabaseStore) GetOrderItems(orderID uint) ([]*models.OrderItem, error) {
	var items []*models.OrderItem
	if err := d.db.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Inventory operations

func (d *DatabaseStore) ReduceInventory(orderID uint, items []*models.OrderItem) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND inventory_reduced = ?", orderID, false).
			Update("inventory_reduced", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Already reduced for this order, or order missing. Either way
			// there is nothing left to take.
			return nil
		}

		var failures []string
		for _, item := range items {
			if item.ProductID == 0 {
				continue
			}
			res := tx.Model(&models.Product{}).
				Where("id = ? AND quantity >= ?", item.ProductID, item.Quantity).
				Update("quantity", gorm.Expr("quantity - ?", item.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				failures = append(failures, item.ItemName)
			}
		}
		if len(failures) > 0 {
			return fmt.Errorf("%w for order %d: %v", ErrInsufficientStock, orderID, failures)
		}
		return nil
	})
}

func (d *DatabaseStore) RestoreInventory(orderID uint, items []*models.OrderItem) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND inventory_reduced = ?", orderID, true).
			Update("inventory_reduced", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		for _, item := range items {
			if item.ProductID == 0 {
				continue
			}
			if err := tx.Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				Update("quantity", gorm.Expr("quantity + ?", item.Quantity)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DatabaseStore) CheckLowStock(productID uint, threshold int) (bool, error) {
	var product models.Product
	err := d.db.First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return product.Quantity <= threshold, nil
}

// Product catalog

func (d *DatabaseStore) GetProduct(productID uint) (*models.Product, error) {
	var product models.Product
	err := d.db.First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (d *DatabaseStore) GetProductByName(name string) (*models.Product, error) {
	var product models.Product
	err := d.db.Where("LOWER(name) = LOWER(?)", name).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (d *DatabaseStore) GetAvailableProducts() ([]*models.Product, error) {
	var products []*models.Product
	if err := d.db.Where("available = ?", true).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// User profile operations

func (d *DatabaseStore) GetUserDetail(phone string) (*models.UserDetail, error) {
	var user models.UserDetail
	err := d.db.Where("phone_number = ?", phone).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DatabaseStore) SaveUserDetail(detail *models.UserDetail) error {
	var existing models.UserDetail
	err := d.db.Where("phone_number = ?", detail.PhoneNumber).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.db.Create(detail).Error
	}
	if err != nil {
		return err
	}
	detail.ID = existing.ID
	detail.CreatedAt = existing.CreatedAt
	return d.db.Save(detail).Error
}

// Feedback operations

func (d *DatabaseStore) SaveFeedback(fb *models.Feedback) error {
	return d.db.Create(fb).Error
}

// Lead analytics operations

func (d *DatabaseStore) SaveLeadEvent(ev *models.LeadEvent) error {
	return d.db.Create(ev).Error
}

func (d *DatabaseStore) GetLeadEvents(eventType string) ([]*models.LeadEvent, error) {
	var events []*models.LeadEvent
	query := d.db.Order("created_at")
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Support operations

func (d *DatabaseStore) SaveEnquiry(e *models.Enquiry) error {
	return d.db.Create(e).Error
}

func (d *DatabaseStore) SaveComplaint(c *models.Complaint) error {
	return d.db.Create(c).Error
}
