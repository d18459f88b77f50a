package services

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/storage"
)

// LeadTracker records funnel events (first contact, cart activity,
// conversion) for the analytics dashboard. Failures are logged and dropped;
// analytics must never break the conversation.
type LeadTracker struct {
	store storage.Store

	// one interaction event per phone per day is enough
	seen   map[string]time.Time
	seenMu sync.Mutex
}

// NewLeadTracker creates a new lead tracker
func NewLeadTracker(store storage.Store) *LeadTracker {
	return &LeadTracker{
		store: store,
		seen:  make(map[string]time.Time),
	}
}

// TrackInteraction records that a customer messaged us today.
func (lt *LeadTracker) TrackInteraction(session *Session) {
	lt.seenMu.Lock()
	if last, ok := lt.seen[session.UserPhone]; ok && time.Since(last) < 24*time.Hour {
		lt.seenMu.Unlock()
		return
	}
	lt.seen[session.UserPhone] = time.Now()
	lt.seenMu.Unlock()

	ev := &models.LeadEvent{
		EventID:     uuid.NewString(),
		PhoneNumber: session.UserPhone,
		UserName:    session.UserName,
		EventType:   models.LeadEventInteraction,
	}
	if err := lt.store.SaveLeadEvent(ev); err != nil {
		log.Printf("Failed to save interaction event for %s: %v", session.UserPhone, err)
	}
}

// TrackCartActivity records that a customer built a cart.
func (lt *LeadTracker) TrackCartActivity(session *Session) {
	if len(session.Cart) == 0 {
		return
	}
	ev := &models.LeadEvent{
		EventID:     uuid.NewString(),
		PhoneNumber: session.UserPhone,
		UserName:    session.UserName,
		EventType:   models.LeadEventCartActivity,
		OrderValue:  session.CartTotal(),
		CartSize:    len(session.Cart),
	}
	if err := lt.store.SaveLeadEvent(ev); err != nil {
		log.Printf("Failed to save cart event for %s: %v", session.UserPhone, err)
	}
}

// TrackConversion records a paid order.
func (lt *LeadTracker) TrackConversion(phone, userName string, orderID uint, orderValue decimal.Decimal) {
	ev := &models.LeadEvent{
		EventID:     uuid.NewString(),
		PhoneNumber: phone,
		UserName:    userName,
		EventType:   models.LeadEventConversion,
		OrderID:     orderID,
		OrderValue:  orderValue,
	}
	if err := lt.store.SaveLeadEvent(ev); err != nil {
		log.Printf("Failed to save conversion event for %s: %v", phone, err)
	}
}
