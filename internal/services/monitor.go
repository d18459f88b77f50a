package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lolakitchen/chowbot-backend/internal/config"
	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/storage"
	"github.com/lolakitchen/chowbot-backend/internal/utils"
)

// errAlreadyResolved marks a confirmation attempt against an order that has
// already been cancelled or expired.
var errAlreadyResolved = errors.New("order already resolved")

// paymentTimer is the in-memory monitoring state for one checkout attempt.
// At most one per session; not persisted, lost on restart (the webhook and
// the manual "paid" check still reconcile such orders).
type paymentTimer struct {
	orderID   uint
	reference string
	phone     string
	attempt   int
	cancelled bool
	timer     *time.Timer
}

// PaymentMonitor owns an order from payment link creation to terminal
// status, reconciling the three confirmation channels (polling, webhook,
// manual check) against the single order record.
type PaymentMonitor struct {
	store    storage.Store
	gateway  PaymentGateway
	notifier Notifier
	sessions *SessionManager
	leads    *LeadTracker // optional
	cfg      *config.Config

	timers map[string]*paymentTimer // keyed by phone
	mu     sync.Mutex
}

// NewPaymentMonitor creates a new payment monitor
func NewPaymentMonitor(store storage.Store, gateway PaymentGateway, notifier Notifier, sessions *SessionManager, leads *LeadTracker, cfg *config.Config) *PaymentMonitor {
	return &PaymentMonitor{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		sessions: sessions,
		leads:    leads,
		cfg:      cfg,
		timers:   make(map[string]*paymentTimer),
	}
}

// CreatePaymentLink prices the order, persists its payment reference, asks
// the gateway for a hosted checkout URL and starts the polling timer. The
// returned text is the reply to send the customer.
func (pm *PaymentMonitor) CreatePaymentLink(session *Session) (string, error) {
	if len(session.Cart) == 0 {
		return "", fmt.Errorf("cart is empty")
	}
	if session.OrderID == 0 {
		return "", fmt.Errorf("no order created for session %s", session.UserPhone)
	}

	order, err := pm.store.GetOrder(session.OrderID)
	if err != nil {
		return "", fmt.Errorf("order %d not found: %w", session.OrderID, err)
	}
	if !order.TotalAmount.IsPositive() {
		return "", fmt.Errorf("order %d has a non-positive subtotal", order.ID)
	}

	reference := fmt.Sprintf("PAY-%d", order.ID)
	totals := pm.orderTotals(order)

	if _, err := pm.store.UpdateOrderStatus(order.ID, models.OrderStatusPendingPayment, &storage.PaymentMeta{PaymentReference: reference}); err != nil {
		return "", fmt.Errorf("failed to persist payment reference: %w", err)
	}

	url, err := pm.gateway.CreateLink(utils.ToKobo(totals.Total), reference, utils.CustomerEmail(session.UserPhone), map[string]interface{}{
		"order_id": order.ID,
		"phone":    session.UserPhone,
		"customer": session.DisplayName(),
	})
	if err != nil {
		log.Printf("Payment link creation failed for order %d: %v", order.ID, err)
		return "", err
	}

	session.PaymentReference = reference
	pm.startTimer(session.UserPhone, order.ID, reference)

	log.Printf("💳 Payment link created for order %d (%s, %s)", order.ID, reference, utils.FormatNaira(totals.Total))
	return paymentLinkText(totals, url), nil
}

// orderTotals recomputes the charged components from the persisted order.
func (pm *PaymentMonitor) orderTotals(order *models.Order) OrderTotals {
	return OrderTotals{
		Subtotal:      order.TotalAmount,
		DeliveryFee:   order.DeliveryFee,
		ServiceCharge: order.ServiceCharge,
		Total:         order.TotalAmount.Add(order.DeliveryFee).Add(order.ServiceCharge),
	}
}

func paymentLinkText(totals OrderTotals, url string) string {
	return fmt.Sprintf(`Almost there! 🎉

Subtotal: %s
Delivery fee: %s
Service charge: %s
*Total: %s*

Pay securely here:
%s

⏰ This link expires in 15 minutes. Type *paid* once you've completed payment, or *cancel* to call it off.`,
		utils.FormatNaira(totals.Subtotal),
		utils.FormatNaira(totals.DeliveryFee),
		utils.FormatNaira(totals.ServiceCharge),
		utils.FormatNaira(totals.Total),
		url)
}

// startTimer begins the polling chain: an immediate check, then one roughly
// every poll interval up to the attempt cap.
func (pm *PaymentMonitor) startTimer(phone string, orderID uint, reference string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if existing, ok := pm.timers[phone]; ok {
		existing.cancelled = true
		if existing.timer != nil {
			existing.timer.Stop()
		}
	}

	pt := &paymentTimer{orderID: orderID, reference: reference, phone: phone}
	pm.timers[phone] = pt
	pt.timer = time.AfterFunc(0, func() { pm.runCheck(phone) })
}

// runCheck is one polling attempt. Errors never break the chain; it
// reschedules while attempts remain.
func (pm *PaymentMonitor) runCheck(phone string) {
	pm.mu.Lock()
	pt, ok := pm.timers[phone]
	if !ok || pt.cancelled {
		pm.mu.Unlock()
		return
	}
	pt.attempt++
	attempt := pt.attempt
	orderID := pt.orderID
	reference := pt.reference
	pm.mu.Unlock()

	verified, data, err := pm.gateway.Verify(reference)
	if err != nil {
		log.Printf("Payment check %d for %s errored: %v", attempt, reference, err)
	}

	if err == nil && verified {
		order, gerr := pm.store.GetOrder(orderID)
		if gerr != nil {
			log.Printf("Verified payment %s but order %d missing: %v", reference, orderID, gerr)
			pm.CancelTimerFor(phone)
			return
		}
		text, cerr := pm.Confirm(order, data, "automatic")
		pm.CancelTimerFor(phone)
		if cerr != nil {
			if !errors.Is(cerr, errAlreadyResolved) {
				pm.send(phone, supportText())
			}
			return
		}
		if text != "" {
			pm.send(phone, text)
			pm.sendFeedbackPrompt(phone)
		}
		return
	}

	if attempt == pm.cfg.ReminderAttempt {
		pm.sendReminder(phone, orderID, reference)
	}

	if attempt >= pm.cfg.PollMaxAttempts {
		pm.timeout(phone, orderID)
		return
	}

	pm.mu.Lock()
	if cur, ok := pm.timers[phone]; ok && cur == pt && !pt.cancelled {
		pt.timer = time.AfterFunc(pm.cfg.PollInterval, func() { pm.runCheck(phone) })
	}
	pm.mu.Unlock()
}

// sendReminder regenerates a link for the same reference and nudges the
// customer once, mid-way through the polling window.
func (pm *PaymentMonitor) sendReminder(phone string, orderID uint, reference string) {
	order, err := pm.store.GetOrder(orderID)
	if err != nil || order.Status != models.OrderStatusPendingPayment {
		return
	}
	totals := pm.orderTotals(order)

	url, err := pm.gateway.CreateLink(utils.ToKobo(totals.Total), reference, utils.CustomerEmail(phone), map[string]interface{}{
		"order_id": order.ID,
		"phone":    phone,
	})
	if err != nil {
		log.Printf("Reminder link regeneration failed for order %d: %v", orderID, err)
		return
	}

	pm.send(phone, fmt.Sprintf("Still there? 👋 Your order of %s is waiting.\n\nComplete your payment here:\n%s\n\nType *paid* once done, or *cancel* to call it off.",
		utils.FormatNaira(totals.Total), url))
	log.Printf("⏰ Payment reminder sent for order %d", orderID)
}

// timeout expires an order after the polling window closes unpaid.
func (pm *PaymentMonitor) timeout(phone string, orderID uint) {
	pm.CancelTimerFor(phone)

	changed, err := pm.store.UpdateOrderStatus(orderID, models.OrderStatusExpired, nil)
	if err != nil {
		log.Printf("Failed to expire order %d: %v", orderID, err)
		return
	}
	if !changed {
		// A confirmation channel beat the timeout; nothing to do.
		return
	}

	session, _ := pm.sessions.GetOrCreate(phone)
	session.Handler = HandlerGreeting
	session.State = StateGreeting
	session.Cart = nil
	session.OrderID = 0
	session.PaymentReference = ""
	pm.sessions.Persist(session)

	pm.send(phone, "We didn't receive your payment in time, so that order has been cancelled. 😔\n\nNo charge was made. Type *menu* whenever you'd like to order again!")
	log.Printf("⌛ Order %d expired after payment window", orderID)
}

// ManualCheck verifies the reference synchronously in response to the
// customer typing "paid". The returned text is the reply to send.
func (pm *PaymentMonitor) ManualCheck(session *Session) string {
	reference := session.PaymentReference
	if reference == "" && session.OrderID != 0 {
		reference = fmt.Sprintf("PAY-%d", session.OrderID)
	}
	if reference == "" {
		return "We couldn't find an order awaiting payment for you. Type *menu* to start a new one. 🙂"
	}

	verified, data, err := pm.gateway.Verify(reference)
	if err != nil {
		log.Printf("Manual payment check failed for %s: %v", reference, err)
		return "We couldn't check your payment just now. Please try again in a moment. 🙏"
	}
	if !verified {
		return "We haven't received your payment yet. ⏳\n\nIf you've just paid, give it a minute and type *paid* again."
	}

	order, err := pm.store.GetOrderByReference(reference)
	if err != nil {
		log.Printf("Verified payment %s but no matching order", reference)
		return "Your payment went through, but we couldn't find the matching order. 😟 Please contact support and we'll sort it out immediately."
	}

	text, err := pm.Confirm(order, data, "manual")
	pm.CancelTimerFor(session.UserPhone)
	if err != nil {
		if errors.Is(err, errAlreadyResolved) {
			return "That order has already been closed, so this payment couldn't be applied. 😟 Please contact support and we'll sort it out immediately."
		}
		return supportText()
	}

	// Refresh the caller's copy so the state machine's final persist does
	// not clobber what finishSession just wrote (feedback state, paid track).
	if cur, _ := pm.sessions.GetOrCreate(session.UserPhone); cur != nil {
		*session = *cur
	}

	pm.sendFeedbackPrompt(session.UserPhone)
	return text
}

// WebhookEvent is the parsed payload the HTTP layer hands over.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		Channel   string `json:"channel"`
	} `json:"data"`
}

// HandleWebhook processes a gateway event. Fire-and-forget: there is no
// synchronous caller to answer, so unknown references are logged and
// dropped.
func (pm *PaymentMonitor) HandleWebhook(event WebhookEvent) {
	if event.Event != "charge.success" {
		return
	}

	order, err := pm.store.GetOrderByReference(event.Data.Reference)
	if err != nil {
		log.Printf("Webhook for unknown reference %s dropped", event.Data.Reference)
		return
	}

	data := &VerifyData{Amount: event.Data.Amount, Status: event.Data.Status, Channel: event.Data.Channel}
	text, err := pm.Confirm(order, data, "webhook")
	pm.CancelTimerFor(order.CustomerID)
	if err != nil {
		if !errors.Is(err, errAlreadyResolved) {
			pm.send(order.CustomerID, supportText())
		}
		return
	}
	if text != "" {
		pm.send(order.CustomerID, text)
		pm.sendFeedbackPrompt(order.CustomerID)
	}
}

// Confirm is the single reconciliation point for all three channels. It is
// idempotent: the conditional status update decides exactly one winner, and
// every other caller short-circuits without repeating side effects. The
// returned text is the customer's receipt; empty when the order was already
// confirmed by an earlier caller.
func (pm *PaymentMonitor) Confirm(order *models.Order, data *VerifyData, method string) (string, error) {
	meta := &storage.PaymentMeta{VerificationBy: method}
	if data != nil {
		meta.PaymentMethodType = data.Channel
	}

	changed, err := pm.store.UpdateOrderStatus(order.ID, models.OrderStatusConfirmed, meta)
	if err != nil {
		// Do not tell the customer they are confirmed when the write failed.
		log.Printf("Failed to confirm order %d: %v", order.ID, err)
		return "", err
	}
	if !changed {
		current, gerr := pm.store.GetOrder(order.ID)
		if gerr == nil && current.Status == models.OrderStatusConfirmed {
			log.Printf("Order %d already confirmed, %s channel lost the race", order.ID, method)
			return "", nil
		}
		log.Printf("Order %d is %s, refusing late %s confirmation", order.ID, statusOf(current, gerr), method)
		return "", errAlreadyResolved
	}

	log.Printf("✅ Order %d confirmed via %s", order.ID, method)

	items, err := pm.store.GetOrderItems(order.ID)
	if err != nil {
		log.Printf("Failed to load items for confirmed order %d: %v", order.ID, err)
		items = nil
	}

	matched, unmatched := partitionItems(items)
	if len(unmatched) > 0 {
		names := itemNames(unmatched)
		log.Printf("Order %d has %d uncatalogued items: %s", order.ID, len(unmatched), names)
		pm.notifyMerchant(fmt.Sprintf("⚠️ Order #%d contains items not in the catalog: %s. Please review.", order.ID, names))
	}

	if len(matched) > 0 {
		if err := pm.store.ReduceInventory(order.ID, matched); err != nil {
			// Payment is already captured; stock discrepancies are resolved
			// out of band, never by blocking the confirmation.
			log.Printf("Inventory reduction issue for order %d: %v", order.ID, err)
			pm.notifyMerchant(fmt.Sprintf("🚨 Stock problem on paid order #%d: %v", order.ID, err))
		}
		pm.checkLowStock(matched)
	}

	pm.finishSession(order)

	if pm.leads != nil {
		totals := pm.orderTotals(order)
		pm.leads.TrackConversion(order.CustomerID, "", order.ID, totals.Total)
	}

	pm.notifyMerchant(merchantOrderText(order, items))
	return receiptText(order, items, pm.orderTotals(order)), nil
}

// finishSession clears the cart, moves the conversation into feedback and
// grants the extended paid-session window.
func (pm *PaymentMonitor) finishSession(order *models.Order) {
	session, _ := pm.sessions.GetOrCreate(order.CustomerID)
	session.Handler = HandlerFeedback
	session.State = StateFeedbackRating
	session.Cart = nil
	session.OrderID = 0
	session.PaymentReference = ""
	pm.sessions.Persist(session)
	pm.sessions.MarkPaid(order.CustomerID, order.ID, pm.cfg.PaidSessionHours)
}

// Cancel aborts an awaiting-payment order at the customer's request. The
// returned text is the acknowledgement to send.
func (pm *PaymentMonitor) Cancel(session *Session) string {
	pm.CancelTimerFor(session.UserPhone)

	if session.OrderID == 0 {
		return "No problem, nothing was charged. 🙂"
	}

	changed, err := pm.store.UpdateOrderStatus(session.OrderID, models.OrderStatusCancelled, nil)
	if err != nil {
		log.Printf("Failed to cancel order %d: %v", session.OrderID, err)
		return "Something went wrong cancelling that order. Please contact support. 🙏"
	}
	if !changed {
		return "That order has already been completed or closed, so there was nothing to cancel. 🙂"
	}

	// Inventory is only ever reduced at confirmation, so this is a
	// safety net rather than an expected path.
	if items, ierr := pm.store.GetOrderItems(session.OrderID); ierr == nil {
		if rerr := pm.store.RestoreInventory(session.OrderID, items); rerr != nil {
			log.Printf("Inventory restore failed for cancelled order %d: %v", session.OrderID, rerr)
		}
	}

	log.Printf("🚫 Order %d cancelled by customer", session.OrderID)
	return "Your order has been cancelled and nothing was charged. 🙂"
}

// CancelTimerFor stops the polling chain for a session, if one is running.
// Safe to call from the sweep job, the message path and timer callbacks.
func (pm *PaymentMonitor) CancelTimerFor(phone string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pt, ok := pm.timers[phone]; ok {
		pt.cancelled = true
		if pt.timer != nil {
			pt.timer.Stop()
		}
		delete(pm.timers, phone)
	}
}

// ActiveTimers reports how many polling chains are live (for monitoring).
func (pm *PaymentMonitor) ActiveTimers() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.timers)
}

func (pm *PaymentMonitor) checkLowStock(items []*models.OrderItem) {
	for _, item := range items {
		low, err := pm.store.CheckLowStock(item.ProductID, pm.cfg.LowStockThreshold)
		if err != nil || !low {
			continue
		}
		pm.notifyMerchant(fmt.Sprintf("📉 Low stock: %s is at or below %d portions.", item.ItemName, pm.cfg.LowStockThreshold))
	}
}

func (pm *PaymentMonitor) send(phone, text string) {
	if pm.notifier == nil || text == "" {
		return
	}
	if err := pm.notifier.SendText(phone, text); err != nil {
		log.Printf("Failed to message %s: %v", phone, err)
	}
}

func (pm *PaymentMonitor) sendFeedbackPrompt(phone string) {
	if pm.notifier == nil {
		return
	}
	prompt := feedbackPrompt()
	if err := pm.notifier.SendButtons(phone, prompt.reply.Text, prompt.reply.Buttons); err != nil {
		log.Printf("Failed to send feedback prompt to %s: %v", phone, err)
	}
}

func (pm *PaymentMonitor) notifyMerchant(text string) {
	if pm.notifier == nil || pm.cfg.MerchantPhone == "" {
		return
	}
	if err := pm.notifier.SendText(pm.cfg.MerchantPhone, text); err != nil {
		log.Printf("Failed to notify merchant: %v", err)
	}
}

func partitionItems(items []*models.OrderItem) (matched, unmatched []*models.OrderItem) {
	for _, item := range items {
		if item.ProductID == 0 {
			unmatched = append(unmatched, item)
		} else {
			matched = append(matched, item)
		}
	}
	return matched, unmatched
}

func itemNames(items []*models.OrderItem) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.ItemName)
	}
	return strings.Join(names, ", ")
}

func statusOf(order *models.Order, err error) string {
	if err != nil || order == nil {
		return "missing"
	}
	return order.Status
}

func supportText() string {
	return "Something went wrong finalizing your order. 😟 Please contact support with your payment details and we'll sort it out immediately."
}

func receiptText(order *models.Order, items []*models.OrderItem, totals OrderTotals) string {
	var b strings.Builder
	b.WriteString("Payment confirmed! 🎉 Your order is on its way to the kitchen.\n\n")
	b.WriteString(fmt.Sprintf("*Order #%d*\n", order.ID))
	b.WriteString(itemizedLines(items))
	b.WriteString(fmt.Sprintf("\nSubtotal: %s", utils.FormatNaira(totals.Subtotal)))
	b.WriteString(fmt.Sprintf("\nDelivery fee: %s", utils.FormatNaira(totals.DeliveryFee)))
	b.WriteString(fmt.Sprintf("\nService charge: %s", utils.FormatNaira(totals.ServiceCharge)))
	b.WriteString(fmt.Sprintf("\n*Total paid: %s*", utils.FormatNaira(totals.Total)))
	b.WriteString(fmt.Sprintf("\n\n📍 Delivering to: %s", order.Address))
	if order.CustomersNote != "" {
		b.WriteString(fmt.Sprintf("\n📝 Note: %s", order.CustomersNote))
	}
	b.WriteString("\n\nWe'll keep you posted! 🚴")
	return b.String()
}

func merchantOrderText(order *models.Order, items []*models.OrderItem) string {
	totals := OrderTotals{
		Subtotal:      order.TotalAmount,
		DeliveryFee:   order.DeliveryFee,
		ServiceCharge: order.ServiceCharge,
		Total:         order.TotalAmount.Add(order.DeliveryFee).Add(order.ServiceCharge),
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🍽️ *NEW PAID ORDER #%d*\n\n", order.ID))
	b.WriteString(fmt.Sprintf("Customer: %s\n", order.CustomerID))
	b.WriteString(fmt.Sprintf("Address: %s\n", order.Address))
	if order.CustomersNote != "" {
		b.WriteString(fmt.Sprintf("Note: %s\n", order.CustomersNote))
	}
	b.WriteString("\n")
	b.WriteString(itemizedLines(items))
	b.WriteString(fmt.Sprintf("\nTotal paid: %s", utils.FormatNaira(totals.Total)))
	b.WriteString(fmt.Sprintf("\nReference: %s", order.PaymentReference))
	b.WriteString(fmt.Sprintf("\nVerified by: %s", order.VerificationBy))
	return b.String()
}
