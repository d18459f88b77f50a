package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/storage"
)

// fakeGateway is a scriptable PaymentGateway.
type fakeGateway struct {
	mu          sync.Mutex
	verified    bool
	verifyErr   error
	linkErr     error
	linkCalls   int
	lastAmount  int64
	lastRef     string
	verifyCalls int
}

func (f *fakeGateway) CreateLink(amountKobo int64, reference, email string, metadata map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return "", f.linkErr
	}
	f.linkCalls++
	f.lastAmount = amountKobo
	f.lastRef = reference
	return "https://checkout.example.com/" + reference, nil
}

func (f *fakeGateway) Verify(reference string) (bool, *VerifyData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return false, nil, f.verifyErr
	}
	if f.verified {
		return true, &VerifyData{Amount: 357500, Status: "success", Channel: "card"}, nil
	}
	return false, &VerifyData{Status: "abandoned"}, nil
}

// fakeNotifier records every outbound message.
type fakeNotifier struct {
	mu       sync.Mutex
	messages map[string][]string // recipient -> texts
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{messages: make(map[string][]string)}
}

func (f *fakeNotifier) SendText(recipient, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[recipient] = append(f.messages[recipient], text)
	return nil
}

func (f *fakeNotifier) SendButtons(recipient, text string, buttons []Button) error {
	return f.SendText(recipient, text)
}

func (f *fakeNotifier) sent(recipient string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages[recipient]...)
}

func newTestMonitor(t *testing.T, gateway *fakeGateway) (*PaymentMonitor, *storage.MemoryStore, *SessionManager, *fakeNotifier) {
	t.Helper()
	store := storage.NewMemoryStore()
	store.SeedProduct(&models.Product{Name: "Jollof Rice", Price: decimal.NewFromInt(1500), Quantity: 20, Available: true})

	cfg := testConfig()
	sm := NewSessionManager(cfg.SessionTimeout, cfg.FreshResetGrace)
	notifier := newFakeNotifier()
	pm := NewPaymentMonitor(store, gateway, notifier, sm, NewLeadTracker(store), cfg)
	return pm, store, sm, notifier
}

func seedPendingOrder(t *testing.T, store *storage.MemoryStore, phone string) *models.Order {
	t.Helper()
	order, err := store.CreateOrder(&models.Order{
		CustomerID:    phone,
		Address:       "12 Example Rd",
		TotalAmount:   decimal.NewFromInt(3000),
		DeliveryFee:   decimal.NewFromInt(500),
		ServiceCharge: decimal.NewFromInt(75),
		Items: []models.OrderItem{
			{ProductID: 1, ItemName: "Jollof Rice", Quantity: 2, UnitPrice: decimal.NewFromInt(1500), Subtotal: decimal.NewFromInt(3000)},
		},
	})
	require.NoError(t, err)
	ref := fmt.Sprintf("PAY-%d", order.ID)
	_, err = store.UpdateOrderStatus(order.ID, models.OrderStatusPendingPayment, &storage.PaymentMeta{PaymentReference: ref})
	require.NoError(t, err)
	order.PaymentReference = ref
	return order
}

func TestCreatePaymentLinkEndToEnd(t *testing.T) {
	gateway := &fakeGateway{}
	pm, store, sm, _ := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)

	session, _ := sm.GetOrCreate(phone)
	session.UserName = "Ada"
	session.Address = "12 Example Rd"
	session.Cart = []CartItem{{ProductID: 1, Name: "Jollof Rice", Quantity: 2, UnitPrice: decimal.NewFromInt(1500)}}
	session.OrderID = order.ID
	sm.Persist(session)

	text, err := pm.CreatePaymentLink(session)
	require.NoError(t, err)
	defer pm.CancelTimerFor(phone)

	// ₦3,000 + ₦500 + 2.5% (₦75) = ₦3,575 = 357,500 kobo.
	assert.Equal(t, int64(357500), gateway.lastAmount)
	assert.Equal(t, fmt.Sprintf("PAY-%d", order.ID), gateway.lastRef)
	assert.Contains(t, text, "₦3,575")
	assert.Contains(t, text, "https://checkout.example.com/")

	stored, err := store.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PAY-%d", order.ID), stored.PaymentReference)
	assert.Equal(t, models.OrderStatusPendingPayment, stored.Status)
}

func TestCreatePaymentLinkEmptyCart(t *testing.T) {
	gateway := &fakeGateway{}
	pm, _, sm, _ := newTestMonitor(t, gateway)

	session, _ := sm.GetOrCreate("+2348011111111")
	session.OrderID = 1
	_, err := pm.CreatePaymentLink(session)
	assert.Error(t, err)
	assert.Zero(t, gateway.linkCalls)
}

func TestCreatePaymentLinkGatewayFailure(t *testing.T) {
	gateway := &fakeGateway{linkErr: fmt.Errorf("gateway down")}
	pm, store, sm, _ := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	session.Cart = []CartItem{{ProductID: 1, Name: "Jollof Rice", Quantity: 2, UnitPrice: decimal.NewFromInt(1500)}}
	session.OrderID = order.ID

	_, err := pm.CreatePaymentLink(session)
	require.Error(t, err)

	// The order stays pending so a retry reuses it.
	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusPendingPayment, stored.Status)
	assert.Zero(t, pm.ActiveTimers())
}

func TestConfirmIsIdempotent(t *testing.T) {
	gateway := &fakeGateway{}
	pm, store, sm, notifier := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	sm.Persist(session)

	data := &VerifyData{Amount: 357500, Status: "success", Channel: "card"}

	first, err := pm.Confirm(order, data, "automatic")
	require.NoError(t, err)
	assert.Contains(t, first, "Payment confirmed")

	second, err := pm.Confirm(order, data, "webhook")
	require.NoError(t, err)
	assert.Empty(t, second)

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, "automatic", stored.VerificationBy)
	assert.NotNil(t, stored.ConfirmedAt)

	// Inventory reduced exactly once: 20 - 2 = 18.
	product, _ := store.GetProduct(1)
	assert.Equal(t, 18, product.Quantity)

	// Merchant notified exactly once.
	assert.Len(t, notifier.sent("+2348099999999"), 1)

	// Session moved to feedback on the paid track.
	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerFeedback, after.Handler)
	assert.Equal(t, StateFeedbackRating, after.State)
	assert.True(t, sm.IsPaidSession(phone))
}

func TestNoConfirmationAfterTerminalState(t *testing.T) {
	gateway := &fakeGateway{}
	pm, store, sm, _ := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	session.OrderID = order.ID
	session.PaymentReference = order.PaymentReference
	sm.Persist(session)

	// The customer cancels first.
	changed, err := store.UpdateOrderStatus(order.ID, models.OrderStatusCancelled, nil)
	require.NoError(t, err)
	require.True(t, changed)

	// A late webhook-style confirmation must be refused.
	_, err = pm.Confirm(order, &VerifyData{Status: "success"}, "webhook")
	assert.ErrorIs(t, err, errAlreadyResolved)

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)

	// No inventory was touched.
	product, _ := store.GetProduct(1)
	assert.Equal(t, 20, product.Quantity)

	// A late manual "paid" surfaces already-resolved, not success.
	gateway.verified = true
	reply := pm.ManualCheck(session)
	assert.Contains(t, reply, "already been closed")
}

func TestManualCheckNotYetPaid(t *testing.T) {
	gateway := &fakeGateway{}
	pm, store, sm, _ := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	session.OrderID = order.ID
	session.PaymentReference = order.PaymentReference

	reply := pm.ManualCheck(session)
	assert.Contains(t, reply, "haven't received your payment")

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusPendingPayment, stored.Status)
}

func TestManualCheckVerified(t *testing.T) {
	gateway := &fakeGateway{verified: true}
	pm, store, sm, notifier := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	session.OrderID = order.ID
	session.PaymentReference = order.PaymentReference
	sm.Persist(session)

	reply := pm.ManualCheck(session)
	assert.Contains(t, reply, "Payment confirmed")
	assert.Equal(t, HandlerFeedback, session.Handler)

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, "manual", stored.VerificationBy)

	// Feedback prompt went out as a separate message.
	assert.NotEmpty(t, notifier.sent(phone))
}

func TestManualCheckGatewayError(t *testing.T) {
	gateway := &fakeGateway{verifyErr: fmt.Errorf("timeout")}
	pm, store, sm, _ := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	session.OrderID = order.ID
	session.PaymentReference = order.PaymentReference

	reply := pm.ManualCheck(session)
	assert.Contains(t, reply, "try again")

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusPendingPayment, stored.Status)
}

func TestWebhookConfirmsOrder(t *testing.T) {
	gateway := &fakeGateway{}
	pm, store, sm, notifier := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	sm.Persist(session)

	var event WebhookEvent
	event.Event = "charge.success"
	event.Data.Reference = order.PaymentReference
	event.Data.Amount = 357500
	event.Data.Status = "success"
	event.Data.Channel = "bank"

	pm.HandleWebhook(event)

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, "webhook", stored.VerificationBy)
	assert.Equal(t, "bank", stored.PaymentMethodType)

	// Receipt and feedback prompt both delivered.
	assert.GreaterOrEqual(t, len(notifier.sent(phone)), 2)
}

func TestWebhookUnknownReferenceDropped(t *testing.T) {
	gateway := &fakeGateway{}
	pm, _, _, notifier := newTestMonitor(t, gateway)

	var event WebhookEvent
	event.Event = "charge.success"
	event.Data.Reference = "PAY-999"

	assert.NotPanics(t, func() { pm.HandleWebhook(event) })
	assert.Empty(t, notifier.messages)
}

func TestReminderFiresOnceThenTimeout(t *testing.T) {
	gateway := &fakeGateway{}
	pm, store, sm, notifier := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	sm.Persist(session)

	// Drive the polling chain by hand; the rescheduled timers are an hour
	// out and never fire during the test.
	pm.mu.Lock()
	pm.timers[phone] = &paymentTimer{orderID: order.ID, reference: order.PaymentReference, phone: phone}
	pm.mu.Unlock()

	for i := 0; i < 15; i++ {
		pm.runCheck(phone)
	}

	reminders := 0
	timeouts := 0
	for _, msg := range notifier.sent(phone) {
		if strings.Contains(msg, "Still there?") {
			reminders++
		}
		if strings.Contains(msg, "didn't receive your payment") {
			timeouts++
		}
	}
	assert.Equal(t, 1, reminders, "exactly one reminder, on attempt 5")
	assert.Equal(t, 1, timeouts, "exactly one timeout message")

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusExpired, stored.Status)
	assert.Zero(t, pm.ActiveTimers())

	// Late checks after the timer is gone are no-ops.
	pm.runCheck(phone)
	stored, _ = store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusExpired, stored.Status)
}

func TestPollingErrorDoesNotKillChain(t *testing.T) {
	gateway := &fakeGateway{verifyErr: fmt.Errorf("flaky network")}
	pm, store, _, _ := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)

	pm.mu.Lock()
	pm.timers[phone] = &paymentTimer{orderID: order.ID, reference: order.PaymentReference, phone: phone}
	pm.mu.Unlock()

	pm.runCheck(phone)
	pm.runCheck(phone)

	// Still pending, timer still alive, both attempts counted.
	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusPendingPayment, stored.Status)
	assert.Equal(t, 1, pm.ActiveTimers())
	assert.Equal(t, 2, gateway.verifyCalls)

	pm.CancelTimerFor(phone)
}

func TestPollingConfirmsWhenVerified(t *testing.T) {
	gateway := &fakeGateway{verified: true}
	pm, store, sm, notifier := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	sm.Persist(session)

	pm.mu.Lock()
	pm.timers[phone] = &paymentTimer{orderID: order.ID, reference: order.PaymentReference, phone: phone}
	pm.mu.Unlock()

	pm.runCheck(phone)

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, "automatic", stored.VerificationBy)
	assert.Zero(t, pm.ActiveTimers())
	assert.NotEmpty(t, notifier.sent(phone))
}

func TestCancelAwaitingPayment(t *testing.T) {
	gateway := &fakeGateway{}
	pm, store, sm, _ := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	session.OrderID = order.ID
	sm.Persist(session)

	pm.mu.Lock()
	pm.timers[phone] = &paymentTimer{orderID: order.ID, reference: order.PaymentReference, phone: phone}
	pm.mu.Unlock()

	reply := pm.Cancel(session)
	assert.Contains(t, reply, "cancelled")
	assert.Zero(t, pm.ActiveTimers())

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)

	// Inventory untouched; nothing had been reduced yet.
	product, _ := store.GetProduct(1)
	assert.Equal(t, 20, product.Quantity)
}

func TestCancelAlreadyConfirmed(t *testing.T) {
	gateway := &fakeGateway{}
	pm, store, sm, _ := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order := seedPendingOrder(t, store, phone)
	session, _ := sm.GetOrCreate(phone)
	session.OrderID = order.ID
	sm.Persist(session)

	_, err := pm.Confirm(order, &VerifyData{Status: "success", Channel: "card"}, "webhook")
	require.NoError(t, err)

	reply := pm.Cancel(session)
	assert.Contains(t, reply, "already been completed")

	stored, _ := store.GetOrder(order.ID)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
}

func TestLowStockAlert(t *testing.T) {
	gateway := &fakeGateway{}
	pm, store, sm, notifier := newTestMonitor(t, gateway)
	phone := "+2348011111111"

	order, err := store.CreateOrder(&models.Order{
		CustomerID:    phone,
		Address:       "12 Example Rd",
		TotalAmount:   decimal.NewFromInt(3000),
		DeliveryFee:   decimal.NewFromInt(500),
		ServiceCharge: decimal.NewFromInt(75),
		Items: []models.OrderItem{
			{ProductID: 1, ItemName: "Jollof Rice", Quantity: 16, UnitPrice: decimal.NewFromInt(1500), Subtotal: decimal.NewFromInt(24000)},
		},
	})
	require.NoError(t, err)

	session, _ := sm.GetOrCreate(phone)
	sm.Persist(session)

	_, err = pm.Confirm(order, &VerifyData{Status: "success", Channel: "card"}, "manual")
	require.NoError(t, err)

	// 20 - 16 = 4, below the threshold of 5: the merchant hears about it.
	stocked, _ := store.GetProduct(1)
	assert.Equal(t, 4, stocked.Quantity)

	lowStockAlerts := 0
	for _, msg := range notifier.sent("+2348099999999") {
		if strings.Contains(msg, "Low stock") {
			lowStockAlerts++
		}
	}
	assert.Equal(t, 1, lowStockAlerts)
}
