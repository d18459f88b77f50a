package services

import "strings"

// Payment flow: the session parks in awaiting_payment while the monitor's
// background timer, the gateway webhook and the user's own "paid" message
// race to resolve the order.

func (mp *MessageProcessor) handleAwaitingPayment(session *Session, message, raw string) HandlerResult {
	if mp.monitor == nil {
		return ReplyText("Payments are temporarily unavailable. Please try again shortly. 🙏")
	}

	switch strings.ToLower(strings.TrimSpace(message)) {
	case "paid", "i have paid", "done", "payment_done":
		text := mp.monitor.ManualCheck(session)
		return ReplyText(text)
	case "cancel", "payment_cancel":
		text := mp.monitor.Cancel(session)
		session.Handler = HandlerGreeting
		session.State = StateGreeting
		session.Cart = nil
		session.OrderID = 0
		session.PaymentReference = ""
		return ReplyText(text + "\n\n" + mainMenuText(session))
	}

	return ReplyButtons(
		"We're waiting for your payment to come through. 💳\n\nTap *I've paid* once you've completed it, or *Cancel* to call the order off.",
		Button{ID: "paid", Title: "I've paid"},
		Button{ID: "cancel", Title: "Cancel"},
	)
}

func (mp *MessageProcessor) handleOrderConfirmation(session *Session, message, raw string) HandlerResult {
	// Anything said after confirmation rolls into the feedback prompt.
	return RedirectTo(HandlerFeedback, message)
}
