package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lolakitchen/chowbot-backend/internal/models"
)

// MemoryStore holds all data in memory, for tests and local development.
type MemoryStore struct {
	orders     map[uint]*models.Order
	orderItems map[uint][]*models.OrderItem
	products   map[uint]*models.Product
	users      map[string]*models.UserDetail
	feedback   []*models.Feedback
	leads      []*models.LeadEvent
	enquiries  []*models.Enquiry
	complaints []*models.Complaint

	// Mutexes for thread safety
	orderMu   sync.RWMutex
	productMu sync.RWMutex
	userMu    sync.RWMutex
	miscMu    sync.RWMutex

	// Counters for ID generation
	orderCounter     uint
	orderItemCounter uint
	productCounter   uint
	userCounter      uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:     make(map[uint]*models.Order),
		orderItems: make(map[uint][]*models.OrderItem),
		products:   make(map[uint]*models.Product),
		users:      make(map[string]*models.UserDetail),
	}
}

// Order operations

func (m *MemoryStore) CreateOrder(order *models.Order) (*models.Order, error) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	m.orderCounter++
	order.ID = m.orderCounter
	order.CreatedAt = time.Now()
	order.UpdatedAt = time.Now()
	if order.Status == "" {
		order.Status = models.OrderStatusPendingPayment
	}

	for i := range order.Items {
		m.orderItemCounter++
		order.Items[i].ID = m.orderItemCounter
		order.Items[i].OrderID = order.ID
		m.orderItems[order.ID] = append(m.orderItems[order.ID], &order.Items[i])
	}

	m.orders[order.ID] = order
	return order, nil
}

func (m *MemoryStore) GetOrder(orderID uint) (*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	order, exists := m.orders[orderID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *MemoryStore) GetOrderByReference(reference string) (*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	for _, order := range m.orders {
		if order.PaymentReference == reference {
			copied := *order
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateOrderStatus(orderID uint, status string, meta *PaymentMeta) (bool, error) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	order, exists := m.orders[orderID]
	if !exists {
		return false, ErrNotFound
	}

	// Conditional update: only pending orders may move to a new status.
	if order.Status != models.OrderStatusPendingPayment && order.Status != status {
		return false, nil
	}
	if order.Status == status && status != models.OrderStatusPendingPayment {
		// Already in the requested terminal state; the first writer won.
		return false, nil
	}

	order.Status = status
	order.UpdatedAt = time.Now()
	if meta != nil {
		if meta.PaymentReference != "" {
			order.PaymentReference = meta.PaymentReference
		}
		if meta.PaymentMethodType != "" {
			order.PaymentMethodType = meta.PaymentMethodType
		}
		if meta.VerificationBy != "" {
			order.VerificationBy = meta.VerificationBy
		}
	}
	if status == models.OrderStatusConfirmed {
		now := time.Now()
		order.ConfirmedAt = &now
	}
	return true, nil
}

func (m *MemoryStore) GetOrderItems(orderID uint) ([]*models.OrderItem, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	items := m.orderItems[orderID]
	result := make([]*models.OrderItem, 0, len(items))
	for _, item := range items {
		copied := *item
		result = append(result, &copied)
	}
	return result, nil
}

// Inventory operations

func (m *MemoryStore) ReduceInventory(orderID uint, items []*models.OrderItem) error {
	m.orderMu.Lock()
	order, exists := m.orders[orderID]
	if !exists {
		m.orderMu.Unlock()
		return ErrNotFound
	}
	if order.InventoryReduced {
		m.orderMu.Unlock()
		return nil
	}
	order.InventoryReduced = true
	m.orderMu.Unlock()

	m.productMu.Lock()
	defer m.productMu.Unlock()

	var failures []string
	for _, item := range items {
		if item.ProductID == 0 {
			continue
		}
		product, ok := m.products[item.ProductID]
		if !ok {
			failures = append(failures, fmt.Sprintf("product %d not found", item.ProductID))
			continue
		}
		if product.Quantity < item.Quantity {
			failures = append(failures, fmt.Sprintf("%s: have %d, need %d", product.Name, product.Quantity, item.Quantity))
			continue
		}
		product.Quantity -= item.Quantity
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w for order %d: %s", ErrInsufficientStock, orderID, strings.Join(failures, "; "))
	}
	return nil
}

func (m *MemoryStore) RestoreInventory(orderID uint, items []*models.OrderItem) error {
	m.orderMu.Lock()
	order, exists := m.orders[orderID]
	if !exists {
		m.orderMu.Unlock()
		return ErrNotFound
	}
	if !order.InventoryReduced {
		// Nothing was reduced for this order; restoring is a no-op.
		m.orderMu.Unlock()
		return nil
	}
	order.InventoryReduced = false
	m.orderMu.Unlock()

	m.productMu.Lock()
	defer m.productMu.Unlock()

	for _, item := range items {
		if item.ProductID == 0 {
			continue
		}
		if product, ok := m.products[item.ProductID]; ok {
			product.Quantity += item.Quantity
		}
	}
	return nil
}

func (m *MemoryStore) CheckLowStock(productID uint, threshold int) (bool, error) {
	m.productMu.RLock()
	defer m.productMu.RUnlock()

	product, exists := m.products[productID]
	if !exists {
		return false, ErrNotFound
	}
	return product.Quantity <= threshold, nil
}

// Product catalog

// SeedProduct inserts a product directly, for tests and local development.
func (m *MemoryStore) SeedProduct(product *models.Product) *models.Product {
	m.productMu.Lock()
	defer m.productMu.Unlock()

	m.productCounter++
	product.ID = m.productCounter
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()
	m.products[product.ID] = product
	return product
}

func (m *MemoryStore) GetProduct(productID uint) (*models.Product, error) {
	m.productMu.RLock()
	defer m.productMu.RUnlock()

	product, exists := m.products[productID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *product
	return &copied, nil
}

func (m *MemoryStore) GetProductByName(name string) (*models.Product, error) {
	m.productMu.RLock()
	defer m.productMu.RUnlock()

	for _, product := range m.products {
		if strings.EqualFold(product.Name, name) {
			copied := *product
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetAvailableProducts() ([]*models.Product, error) {
	m.productMu.RLock()
	defer m.productMu.RUnlock()

	var products []*models.Product
	for _, product := range m.products {
		if product.Available {
			copied := *product
			products = append(products, &copied)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// User profile operations

func (m *MemoryStore) GetUserDetail(phone string) (*models.UserDetail, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, exists := m.users[phone]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MemoryStore) SaveUserDetail(detail *models.UserDetail) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	existing, exists := m.users[detail.PhoneNumber]
	if exists {
		detail.ID = existing.ID
		detail.CreatedAt = existing.CreatedAt
	} else {
		m.userCounter++
		detail.ID = m.userCounter
		detail.CreatedAt = time.Now()
	}
	detail.UpdatedAt = time.Now()
	copied := *detail
	m.users[detail.PhoneNumber] = &copied
	return nil
}

// Feedback operations

func (m *MemoryStore) SaveFeedback(fb *models.Feedback) error {
	m.miscMu.Lock()
	defer m.miscMu.Unlock()

	fb.CreatedAt = time.Now()
	m.feedback = append(m.feedback, fb)
	return nil
}

// Lead analytics operations

func (m *MemoryStore) SaveLeadEvent(ev *models.LeadEvent) error {
	m.miscMu.Lock()
	defer m.miscMu.Unlock()

	ev.CreatedAt = time.Now()
	m.leads = append(m.leads, ev)
	return nil
}

func (m *MemoryStore) GetLeadEvents(eventType string) ([]*models.LeadEvent, error) {
	m.miscMu.RLock()
	defer m.miscMu.RUnlock()

	var events []*models.LeadEvent
	for _, ev := range m.leads {
		if eventType == "" || ev.EventType == eventType {
			copied := *ev
			events = append(events, &copied)
		}
	}
	return events, nil
}

// Support operations

func (m *MemoryStore) SaveEnquiry(e *models.Enquiry) error {
	m.miscMu.Lock()
	defer m.miscMu.Unlock()

	e.CreatedAt = time.Now()
	m.enquiries = append(m.enquiries, e)
	return nil
}

func (m *MemoryStore) SaveComplaint(c *models.Complaint) error {
	m.miscMu.Lock()
	defer m.miscMu.Unlock()

	c.CreatedAt = time.Now()
	m.complaints = append(m.complaints, c)
	return nil
}
