package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolakitchen/chowbot-backend/internal/config"
	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		SessionTimeout:       50 * time.Minute,
		PaidSessionHours:     24,
		FreshResetGrace:      2 * time.Second,
		PollInterval:         time.Hour, // rescheduled checks never fire in tests
		PollMaxAttempts:      15,
		ReminderAttempt:      5,
		DeliveryFee:          decimal.NewFromInt(500),
		ServiceChargePercent: decimal.RequireFromString("2.5"),
		LowStockThreshold:    5,
		MerchantPhone:        "+2348099999999",
	}
}

func newTestProcessor(t *testing.T) (*MessageProcessor, *storage.MemoryStore, *SessionManager) {
	t.Helper()
	store := storage.NewMemoryStore()
	store.SeedProduct(&models.Product{Name: "Jollof Rice", Category: "Rice", Price: decimal.NewFromInt(1500), Quantity: 20, Available: true})
	store.SeedProduct(&models.Product{Name: "Fried Chicken", Category: "Protein", Price: decimal.NewFromInt(2000), Quantity: 10, Available: true})

	cfg := testConfig()
	sm := NewSessionManager(cfg.SessionTimeout, cfg.FreshResetGrace)
	orders := NewOrderService(store, cfg)
	mp := NewMessageProcessor(sm, orders, nil)
	return mp, store, sm
}

func TestDispatchTableComplete(t *testing.T) {
	mp, _, _ := newTestProcessor(t)

	// Every declared handler group routes, every state maps to a function,
	// and every redirect entry point lands on a registered state.
	groups := []HandlerName{
		HandlerGreeting, HandlerMenu, HandlerOrder, HandlerPayment,
		HandlerFeedback, HandlerLocation, HandlerAI, HandlerEnquiry,
		HandlerFAQ, HandlerComplaint,
	}
	for _, group := range groups {
		states, ok := mp.dispatch[group]
		require.True(t, ok, "handler group %q has no dispatch entry", group)
		for state, fn := range states {
			assert.NotNil(t, fn, "state (%s,%s) has a nil handler", group, state)
		}
		entry := entryState(group)
		_, ok = states[entry]
		assert.True(t, ok, "entry state %q for %q is not registered", entry, group)
	}
}

func TestGlobalEscapeOverridesAnyState(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.UserName = "Ada"
	session.Handler = HandlerOrder
	session.State = StateQuantity
	session.Data["pending_item"] = "Jollof Rice"
	sm.Persist(session)

	reply := mp.Handle(phone, "menu", "menu", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "What would you like to do")

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerGreeting, after.Handler)
	assert.Equal(t, StateGreeting, after.State)
}

func TestUnknownStateResetsToGreeting(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.Handler = HandlerOrder
	session.State = StateName("no_such_state")
	sm.Persist(session)

	reply := mp.Handle(phone, "anything", "anything", "")
	require.NotNil(t, reply)
	assert.NotEmpty(t, reply.Text)

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerGreeting, after.Handler)
}

func TestNilHandlerResultResets(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	mp.dispatch[HandlerMenu][StateName("broken")] = func(*MessageProcessor, *Session, string, string) HandlerResult {
		return HandlerResult{}
	}
	session, _ := sm.GetOrCreate(phone)
	session.Handler = HandlerMenu
	session.State = StateName("broken")
	sm.Persist(session)

	reply := mp.Handle(phone, "hm", "hm", "")
	require.NotNil(t, reply)

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerGreeting, after.Handler)
}

func TestHandlerPanicRecovers(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	mp.dispatch[HandlerMenu][StateName("panicky")] = func(*MessageProcessor, *Session, string, string) HandlerResult {
		panic("boom")
	}
	session, _ := sm.GetOrCreate(phone)
	session.Handler = HandlerMenu
	session.State = StateName("panicky")
	sm.Persist(session)

	assert.NotPanics(t, func() {
		reply := mp.Handle(phone, "hi there", "hi there", "")
		require.NotNil(t, reply)
	})

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerGreeting, after.Handler)
}

func TestRedirectHopBound(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	// Two states that redirect to each other forever.
	mp.dispatch[HandlerMenu][StateMenu] = func(_ *MessageProcessor, s *Session, _, _ string) HandlerResult {
		s.State = StateMenu
		return RedirectTo(HandlerAI, "loop")
	}
	mp.dispatch[HandlerAI][StateAIMenuSelection] = func(_ *MessageProcessor, s *Session, _, _ string) HandlerResult {
		s.Handler = HandlerMenu
		s.State = StateMenu
		return RedirectTo(HandlerMenu, "loop")
	}

	session, _ := sm.GetOrCreate(phone)
	session.Handler = HandlerMenu
	session.State = StateMenu
	sm.Persist(session)

	reply := mp.Handle(phone, "x", "x", "")
	require.NotNil(t, reply)

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerGreeting, after.Handler)
}

func TestEmptyCartGuardAtConfirm(t *testing.T) {
	mp, store, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.UserName = "Ada"
	session.Address = "12 Example Rd"
	session.Handler = HandlerOrder
	session.State = StateConfirmOrder
	sm.Persist(session)

	reply := mp.Handle(phone, "confirm", "confirm", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "cart is empty")

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerGreeting, after.Handler)

	// No order was created.
	_, err := store.GetOrder(1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEmptyCartGuardAtSummary(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.Handler = HandlerOrder
	session.State = StateOrderSummary
	sm.Persist(session)

	reply := mp.Handle(phone, "confirm", "confirm", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "cart is empty")
}

func TestMissingAddressRedirectsToLocation(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.UserName = "Ada"
	session.Handler = HandlerOrder
	session.State = StateOrderSummary
	session.Cart = []CartItem{{ProductID: 1, Name: "Jollof Rice", Quantity: 2, UnitPrice: decimal.NewFromInt(1500)}}
	sm.Persist(session)

	reply := mp.Handle(phone, "confirm", "confirm", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "Where should we deliver")

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerLocation, after.Handler)
	// The cart survives the detour.
	assert.Len(t, after.Cart, 1)
}

func TestBrowseAndAddToCartFlow(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	// Returning customer goes straight to the main menu.
	session, _ := sm.GetOrCreate(phone)
	session.UserName = "Ada"
	session.Preferred = "Ada"
	session.Address = "12 Example Rd"
	session.State = StateGreeting
	sm.Persist(session)

	reply := mp.Handle(phone, "1", "1", "")
	require.Contains(t, reply.Text, "Jollof Rice")

	reply = mp.Handle(phone, "1", "1", "")
	require.Contains(t, reply.Text, "How many portions")

	reply = mp.Handle(phone, "2", "2", "")
	require.Contains(t, reply.Text, "₦3,000")
	require.Contains(t, reply.Text, "₦3,575")

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, StateOrderSummary, after.State)
	require.Len(t, after.Cart, 1)
	assert.Equal(t, 2, after.Cart[0].Quantity)

	// Ordering the same dish again increments the line.
	mp.Handle(phone, "add", "add", "")
	mp.Handle(phone, "1", "1", "")
	mp.Handle(phone, "3", "3", "")

	after, _ = sm.GetOrCreate(phone)
	require.Len(t, after.Cart, 1)
	assert.Equal(t, 5, after.Cart[0].Quantity)
}

func TestInvalidQuantityReprompts(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.Handler = HandlerOrder
	session.State = StateQuantity
	session.Data["pending_item"] = "Jollof Rice"
	session.Data["pending_product_id"] = "1"
	session.Data["pending_price"] = "1500"
	sm.Persist(session)

	reply := mp.Handle(phone, "plenty", "plenty", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "number of portions")

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, StateQuantity, after.State)
	assert.Empty(t, after.Cart)
}

func TestExpiredSessionResetsOnNextMessage(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.UserName = "Ada"
	session.Handler = HandlerOrder
	session.State = StateQuantity
	session.Data["pending_item"] = "Jollof Rice"
	session.Data["pending_product_id"] = "1"
	session.Data["pending_price"] = "1500"
	sm.Persist(session)

	// Age the stored session past the standard timeout. The next inbound
	// message must land on a reset session, not revive the stale flow.
	sm.mu.Lock()
	sm.sessions[phone].LastActive = time.Now().Add(-51 * time.Minute)
	sm.mu.Unlock()

	reply := mp.Handle(phone, "2", "2", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "What would you like to do")
	assert.NotContains(t, reply.Text, "order so far")

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerGreeting, after.Handler)
	assert.Empty(t, after.Cart)
	assert.Equal(t, "Ada", after.UserName)
}

func TestFeedbackRatingFlow(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.UserName = "Ada"
	session.Handler = HandlerFeedback
	session.State = StateFeedbackRating
	session.RecentOrderID = 7
	sm.Persist(session)

	reply := mp.Handle(phone, "excellent", "excellent", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "Thank you")

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, StateFeedbackComment, after.State)

	reply = mp.Handle(phone, "skip", "skip", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "Thanks for the feedback")

	after, _ = sm.GetOrCreate(phone)
	assert.Equal(t, HandlerGreeting, after.Handler)
}

func TestFeedbackBadRatingAsksWhatWentWrong(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.Handler = HandlerFeedback
	session.State = StateFeedbackRating
	sm.Persist(session)

	reply := mp.Handle(phone, "bad", "bad", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "sorry to hear that")

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, StateFeedbackComment, after.State)
}

func TestCancelAtFinalConfirmShowsMenu(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.UserName = "Ada"
	session.Preferred = "Ada"
	session.Address = "12 Example Rd"
	session.Handler = HandlerOrder
	session.State = StateConfirmOrder
	session.Cart = []CartItem{{ProductID: 1, Name: "Jollof Rice", Quantity: 2, UnitPrice: decimal.NewFromInt(1500)}}
	sm.Persist(session)

	reply := mp.Handle(phone, "cancel", "cancel", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "What would you like to do")
	assert.NotContains(t, reply.Text, "didn't understand")

	after, _ := sm.GetOrCreate(phone)
	assert.Equal(t, HandlerGreeting, after.Handler)
	assert.Empty(t, after.Cart)
}

func TestBulkOrderParsing(t *testing.T) {
	mp, _, sm := newTestProcessor(t)
	phone := "+2348011111111"

	session, _ := sm.GetOrCreate(phone)
	session.UserName = "Ada"
	session.Address = "12 Example Rd"
	session.Handler = HandlerAI
	session.State = StateAIBulkOrder
	sm.Persist(session)

	reply := mp.Handle(phone, "2 Jollof Rice and 1 Fried Chicken", "2 Jollof Rice and 1 Fried Chicken", "")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Text, "Jollof Rice x2")
	assert.Contains(t, reply.Text, "Fried Chicken x1")

	reply = mp.Handle(phone, "ai_yes", "ai_yes", "")
	require.NotNil(t, reply)

	after, _ := sm.GetOrCreate(phone)
	assert.Len(t, after.Cart, 2)
}
