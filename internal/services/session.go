package services

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one line of a customer's in-progress order.
type CartItem struct {
	ProductID uint            `json:"product_id"` // 0 when the item never matched the catalog
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal returns unit price times quantity.
func (ci CartItem) Subtotal() decimal.Decimal {
	return ci.UnitPrice.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

// Session holds one customer's conversation state, keyed by phone number.
type Session struct {
	SessionID string            `json:"session_id"`
	UserPhone string            `json:"user_phone"`
	UserName  string            `json:"user_name"`
	Preferred string            `json:"preferred_name"`
	Address   string            `json:"address"`
	Handler   HandlerName       `json:"handler"`
	State     StateName         `json:"state"`
	Cart      []CartItem        `json:"cart"`
	Data      map[string]string `json:"data"` // scratch values for multi-step flows

	OrderID          uint   `json:"order_id"`
	PaymentReference string `json:"payment_reference"`

	// Paid-track fields: a customer who has paid keeps their session alive
	// much longer so delivery coordination and reorders stay in context.
	IsPaidUser      bool      `json:"is_paid_user"`
	ExtendedSession bool      `json:"extended_session"`
	PaidExpiresAt   time.Time `json:"paid_session_expires"`
	RecentOrderID   uint      `json:"recent_order_id"`

	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
	LastResetAt time.Time `json:"freshly_reset_at"` // zero unless just reset into greeting
}

// CartTotal sums the subtotals of every item in the cart.
func (s *Session) CartTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Cart {
		total = total.Add(item.Subtotal())
	}
	return total
}

// DisplayName prefers the full name, falling back to the preferred name and
// then the phone number.
func (s *Session) DisplayName() string {
	if s.UserName != "" {
		return s.UserName
	}
	if s.Preferred != "" {
		return s.Preferred
	}
	return s.UserPhone
}

// inGreetingGroup reports whether the session sits at the conversation start.
func (s *Session) inGreetingGroup() bool {
	return s.Handler == HandlerGreeting && (s.State == StateStart || s.State == StateGreeting)
}

// SessionManager manages conversation sessions with two timeout tracks:
// the standard inactivity timeout, and an extended one for customers who
// have paid for an order and may still be coordinating delivery.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	standardTTL time.Duration
	resetGrace  time.Duration
}

// Singleton instance
var (
	sessionManagerInstance *SessionManager
	sessionManagerMu       sync.Mutex
)

// NewSessionManager creates a new session manager
func NewSessionManager(standardTTL, resetGrace time.Duration) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		standardTTL: standardTTL,
		resetGrace:  resetGrace,
	}
}

// SetSessionManager sets the global session manager instance (call from main.go)
func SetSessionManager(sm *SessionManager) {
	sessionManagerMu.Lock()
	defer sessionManagerMu.Unlock()
	sessionManagerInstance = sm
}

// GetSessionManager returns the global session manager instance
func GetSessionManager() *SessionManager {
	sessionManagerMu.Lock()
	defer sessionManagerMu.Unlock()
	if sessionManagerInstance == nil {
		log.Println("Warning: SessionManager not initialized. Creating new instance.")
		sessionManagerInstance = NewSessionManager(3000*time.Second, 2*time.Second)
	}
	return sessionManagerInstance
}

// GetOrCreate returns a copy of the session for a phone number, creating a
// fresh one when none exists or the previous one has timed out. The second
// return value reports whether the session was newly created or reset.
func (sm *SessionManager) GetOrCreate(userPhone string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[userPhone]
	if !exists {
		session = sm.newSessionLocked(userPhone, nil)
		return copySession(session), true
	}

	if sm.expiredLocked(session) {
		// The customer's identity survives a timeout so returning users are
		// not asked for their name and address again.
		session = sm.newSessionLocked(userPhone, session)
		log.Printf("Session timed out, reset for %s", userPhone)
		return copySession(session), true
	}

	return copySession(session), false
}

// Persist writes a mutated session copy back into the store, stamps activity
// and recomputes the freshly-reset marker: it is set only when this write
// moves the session into the greeting group from somewhere else, which is
// the signal that a greeting was just sent and must not be repeated.
func (sm *SessionManager) Persist(session *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session.LastActive = time.Now()

	prev, exists := sm.sessions[session.UserPhone]
	if session.inGreetingGroup() && exists && !prev.inGreetingGroup() {
		session.LastResetAt = time.Now()
	} else {
		session.LastResetAt = time.Time{}
	}

	sm.sessions[session.UserPhone] = copySession(session)
}

// TouchActivity refreshes the inactivity clock and clears the freshly-reset
// marker. Called on every inbound message before routing.
func (sm *SessionManager) TouchActivity(userPhone string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[userPhone]; exists {
		session.LastActive = time.Now()
		session.LastResetAt = time.Time{}
	}
}

// MarkPaid flips the session onto the extended paid-customer timeout track.
func (sm *SessionManager) MarkPaid(userPhone string, orderID uint, hours int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[userPhone]
	if !exists {
		return
	}
	session.IsPaidUser = true
	session.ExtendedSession = true
	session.RecentOrderID = orderID
	session.PaidExpiresAt = time.Now().Add(time.Duration(hours) * time.Hour)
	session.LastActive = time.Now()
	log.Printf("Session for %s moved to paid track until %s", userPhone, session.PaidExpiresAt.Format(time.RFC3339))
}

// IsPaidSession reports whether the phone's session is on a still-valid paid
// track. A lapsed paid window is cleared as a side effect.
func (sm *SessionManager) IsPaidSession(userPhone string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[userPhone]
	if !exists {
		return false
	}
	if !session.IsPaidUser || !session.ExtendedSession {
		return false
	}
	if time.Now().After(session.PaidExpiresAt) {
		session.IsPaidUser = false
		session.ExtendedSession = false
		return false
	}
	return true
}

// IsFreshlyReset reports whether the session was reset into greeting within
// the grace window. Callers use it to suppress a duplicate greeting send.
func (sm *SessionManager) IsFreshlyReset(userPhone string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[userPhone]
	if !exists {
		return false
	}
	if session.LastResetAt.IsZero() || !session.inGreetingGroup() {
		return false
	}
	return time.Since(session.LastResetAt) < sm.resetGrace
}

// Clear removes a session entirely so the next message starts fresh.
func (sm *SessionManager) Clear(userPhone string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, userPhone)
}

// SweepExpired resets every timed-out session in place, preserving customer
// identity. It returns the phone numbers that were swept so callers can
// release any payment timers tied to them.
func (sm *SessionManager) SweepExpired() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var swept []string
	for phone, session := range sm.sessions {
		if sm.expiredLocked(session) {
			sm.newSessionLocked(phone, session)
			swept = append(swept, phone)
		}
	}
	if len(swept) > 0 {
		log.Printf("Swept %d expired sessions", len(swept))
	}
	return swept
}

// ActiveCount returns the number of live sessions (for monitoring).
func (sm *SessionManager) ActiveCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func (sm *SessionManager) expiredLocked(session *Session) bool {
	if session.IsPaidUser && session.ExtendedSession {
		return time.Now().After(session.PaidExpiresAt)
	}
	return time.Since(session.LastActive) > sm.standardTTL
}

// newSessionLocked builds a fresh greeting-state session. When prev is
// non-nil the customer's name and address carry over.
func (sm *SessionManager) newSessionLocked(userPhone string, prev *Session) *Session {
	session := &Session{
		SessionID:   uuid.NewString(),
		UserPhone:   userPhone,
		Handler:     HandlerGreeting,
		State:       StateStart,
		Data:        make(map[string]string),
		CreatedAt:   time.Now(),
		LastActive:  time.Now(),
		LastResetAt: time.Now(),
	}
	if prev != nil {
		session.UserName = prev.UserName
		session.Preferred = prev.Preferred
		session.Address = prev.Address
	}
	sm.sessions[userPhone] = session
	return session
}

func copySession(session *Session) *Session {
	copied := *session
	copied.Cart = make([]CartItem, len(session.Cart))
	copy(copied.Cart, session.Cart)
	copied.Data = make(map[string]string, len(session.Data))
	for k, v := range session.Data {
		copied.Data[k] = v
	}
	return &copied
}
