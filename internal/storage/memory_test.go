package storage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolakitchen/chowbot-backend/internal/models"
)

func seedOrder(t *testing.T, store *MemoryStore, productID uint, qty int) *models.Order {
	t.Helper()
	order, err := store.CreateOrder(&models.Order{
		CustomerID:  "+2348011111111",
		Address:     "12 Example Rd",
		TotalAmount: decimal.NewFromInt(3000),
		Items: []models.OrderItem{
			{ProductID: productID, ItemName: "Jollof Rice", Quantity: qty, UnitPrice: decimal.NewFromInt(1500)},
		},
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrderAssignsIDs(t *testing.T) {
	store := NewMemoryStore()
	order := seedOrder(t, store, 0, 2)

	assert.Equal(t, uint(1), order.ID)
	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)

	items, err := store.GetOrderItems(order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, order.ID, items[0].OrderID)
}

func TestGetOrderByReference(t *testing.T) {
	store := NewMemoryStore()
	order := seedOrder(t, store, 0, 2)

	_, err := store.UpdateOrderStatus(order.ID, models.OrderStatusPendingPayment, &PaymentMeta{PaymentReference: "PAY-1"})
	require.NoError(t, err)

	found, err := store.GetOrderByReference("PAY-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = store.GetOrderByReference("PAY-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOrderStatusIsConditional(t *testing.T) {
	store := NewMemoryStore()
	order := seedOrder(t, store, 0, 2)

	// First transition out of pending wins.
	changed, err := store.UpdateOrderStatus(order.ID, models.OrderStatusConfirmed, &PaymentMeta{VerificationBy: "webhook", PaymentMethodType: "card"})
	require.NoError(t, err)
	assert.True(t, changed)

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, "webhook", stored.VerificationBy)
	assert.NotNil(t, stored.ConfirmedAt)

	// A racing channel loses: no rows affected, no overwrite.
	changed, err = store.UpdateOrderStatus(order.ID, models.OrderStatusConfirmed, &PaymentMeta{VerificationBy: "manual"})
	require.NoError(t, err)
	assert.False(t, changed)

	stored, _ = store.GetOrder(order.ID)
	assert.Equal(t, "webhook", stored.VerificationBy)

	// Terminal states cannot be changed at all.
	changed, err = store.UpdateOrderStatus(order.ID, models.OrderStatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = store.UpdateOrderStatus(999, models.OrderStatusConfirmed, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReduceInventory(t *testing.T) {
	store := NewMemoryStore()
	product := store.SeedProduct(&models.Product{Name: "Jollof Rice", Price: decimal.NewFromInt(1500), Quantity: 10, Available: true})
	order := seedOrder(t, store, product.ID, 4)

	items, _ := store.GetOrderItems(order.ID)
	require.NoError(t, store.ReduceInventory(order.ID, items))

	stocked, _ := store.GetProduct(product.ID)
	assert.Equal(t, 6, stocked.Quantity)

	// Reducing the same order twice is a no-op, not a double take.
	require.NoError(t, store.ReduceInventory(order.ID, items))
	stocked, _ = store.GetProduct(product.ID)
	assert.Equal(t, 6, stocked.Quantity)
}

func TestReduceInventoryInsufficientStock(t *testing.T) {
	store := NewMemoryStore()
	product := store.SeedProduct(&models.Product{Name: "Jollof Rice", Price: decimal.NewFromInt(1500), Quantity: 2, Available: true})
	order := seedOrder(t, store, product.ID, 5)

	items, _ := store.GetOrderItems(order.ID)
	err := store.ReduceInventory(order.ID, items)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Stock is left untouched rather than driven negative.
	stocked, _ := store.GetProduct(product.ID)
	assert.Equal(t, 2, stocked.Quantity)
}

func TestRestoreInventory(t *testing.T) {
	store := NewMemoryStore()
	product := store.SeedProduct(&models.Product{Name: "Jollof Rice", Price: decimal.NewFromInt(1500), Quantity: 10, Available: true})
	order := seedOrder(t, store, product.ID, 4)

	items, _ := store.GetOrderItems(order.ID)

	// Restoring before any reduction is a no-op.
	require.NoError(t, store.RestoreInventory(order.ID, items))
	stocked, _ := store.GetProduct(product.ID)
	assert.Equal(t, 10, stocked.Quantity)

	require.NoError(t, store.ReduceInventory(order.ID, items))
	require.NoError(t, store.RestoreInventory(order.ID, items))
	stocked, _ = store.GetProduct(product.ID)
	assert.Equal(t, 10, stocked.Quantity)
}

func TestCheckLowStock(t *testing.T) {
	store := NewMemoryStore()
	product := store.SeedProduct(&models.Product{Name: "Moi Moi", Price: decimal.NewFromInt(800), Quantity: 3, Available: true})

	low, err := store.CheckLowStock(product.ID, 5)
	require.NoError(t, err)
	assert.True(t, low)

	low, err = store.CheckLowStock(product.ID, 2)
	require.NoError(t, err)
	assert.False(t, low)

	_, err = store.CheckLowStock(999, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductLookup(t *testing.T) {
	store := NewMemoryStore()
	store.SeedProduct(&models.Product{Name: "Jollof Rice", Price: decimal.NewFromInt(1500), Quantity: 10, Available: true})
	store.SeedProduct(&models.Product{Name: "Hidden Special", Price: decimal.NewFromInt(5000), Quantity: 1, Available: false})

	found, err := store.GetProductByName("jollof rice")
	require.NoError(t, err)
	assert.Equal(t, "Jollof Rice", found.Name)

	available, err := store.GetAvailableProducts()
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Jollof Rice", available[0].Name)
}

func TestSaveUserDetailUpserts(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.SaveUserDetail(&models.UserDetail{PhoneNumber: "+2348011111111", Name: "Ada Obi", Address: "12 Example Rd"}))
	first, err := store.GetUserDetail("+2348011111111")
	require.NoError(t, err)

	require.NoError(t, store.SaveUserDetail(&models.UserDetail{PhoneNumber: "+2348011111111", Name: "Ada Obi", Address: "34 New Street"}))
	second, err := store.GetUserDetail("+2348011111111")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "34 New Street", second.Address)
}

func TestLeadEventFiltering(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.SaveLeadEvent(&models.LeadEvent{EventID: "a", EventType: models.LeadEventInteraction}))
	require.NoError(t, store.SaveLeadEvent(&models.LeadEvent{EventID: "b", EventType: models.LeadEventConversion}))
	require.NoError(t, store.SaveLeadEvent(&models.LeadEvent{EventID: "c", EventType: models.LeadEventConversion}))

	conversions, err := store.GetLeadEvents(models.LeadEventConversion)
	require.NoError(t, err)
	assert.Len(t, conversions, 2)

	all, err := store.GetLeadEvents("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
