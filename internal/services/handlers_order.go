package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Order flow: quantities, cart review, detail confirmation, note capture,
// checkout. Checkout hands the order to the payment monitor.

func (mp *MessageProcessor) handleQuantity(session *Session, message, raw string) HandlerResult {
	itemName := session.Data["pending_item"]
	if itemName == "" {
		return RedirectTo(HandlerMenu, "")
	}

	qty, err := strconv.Atoi(strings.TrimSpace(message))
	if err != nil || qty < 1 {
		return ReplyText("Please enter a number of portions, like *2*. 🙂")
	}
	if qty > 50 {
		return ReplyText("That's a lot! For orders above 50 portions please chat with Lola (option 2 on the menu) so we can plan it properly. How many portions (up to 50)?")
	}

	price, err := decimal.NewFromString(session.Data["pending_price"])
	if err != nil {
		return RedirectTo(HandlerMenu, "")
	}
	productID, _ := strconv.ParseUint(session.Data["pending_product_id"], 10, 32)

	addToCart(session, CartItem{
		ProductID: uint(productID),
		Name:      itemName,
		Quantity:  qty,
		UnitPrice: price,
	})
	delete(session.Data, "pending_item")
	delete(session.Data, "pending_product_id")
	delete(session.Data, "pending_price")

	if mp.leads != nil {
		mp.leads.TrackCartActivity(session)
	}

	session.State = StateOrderSummary
	return ReplyText(cartSummaryText(session, mp.orders.Totals(session.Cart)))
}

// addToCart merges by item name: ordering the same dish twice bumps the
// quantity instead of duplicating the line.
func addToCart(session *Session, item CartItem) {
	for i := range session.Cart {
		if strings.EqualFold(session.Cart[i].Name, item.Name) {
			session.Cart[i].Quantity += item.Quantity
			return
		}
	}
	session.Cart = append(session.Cart, item)
}

func (mp *MessageProcessor) handleOrderSummary(session *Session, message, raw string) HandlerResult {
	if len(session.Cart) == 0 {
		return mp.emptyCartReset(session)
	}

	switch strings.ToLower(strings.TrimSpace(message)) {
	case "confirm", "yes", "checkout", "":
		if session.Address == "" {
			// No address on file: collect one before anything else.
			return RedirectTo(HandlerLocation, "")
		}
		session.State = StateConfirmDetails
		return ReplyButtons(
			fmt.Sprintf("Please confirm your delivery details:\n\n👤 %s\n📍 %s", session.DisplayName(), session.Address),
			Button{ID: "details_ok", Title: "Looks good"},
			Button{ID: "details_update", Title: "Update"},
		)
	case "add", "more":
		return RedirectTo(HandlerMenu, "")
	case "remove":
		session.State = StateRemoveItemSelection
		return ReplyText(removeListText(session))
	}
	return ReplyText(cartSummaryText(session, mp.orders.Totals(session.Cart)))
}

func (mp *MessageProcessor) handleRemoveItemSelection(session *Session, message, raw string) HandlerResult {
	n, err := strconv.Atoi(strings.TrimSpace(message))
	if err != nil || n < 1 || n > len(session.Cart) {
		return ReplyText("Please reply with the number of the item to remove.\n\n" + removeListText(session))
	}
	removed := session.Cart[n-1].Name
	session.Cart = append(session.Cart[:n-1], session.Cart[n:]...)

	if len(session.Cart) == 0 {
		return mp.emptyCartReset(session)
	}
	session.State = StateOrderSummary
	return ReplyText(fmt.Sprintf("Removed %s. ✅\n\n%s", removed, cartSummaryText(session, mp.orders.Totals(session.Cart))))
}

func (mp *MessageProcessor) handleConfirmDetails(session *Session, message, raw string) HandlerResult {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "details_ok", "looks good", "yes", "ok", "confirm":
		session.State = StatePromptAddNote
		return ReplyButtons(
			"Any note for the kitchen? (allergies, spice level, landmarks...)",
			Button{ID: "note_yes", Title: "Add a note"},
			Button{ID: "note_no", Title: "No, continue"},
		)
	case "details_update", "update", "no", "change":
		session.State = StateGetNewNameAddress
		return ReplyText("No problem! Please send your name and delivery address like this:\n\n*Ada Obi, 12 Example Road, Lekki*")
	}
	return ReplyButtons(
		fmt.Sprintf("Please confirm your delivery details:\n\n👤 %s\n📍 %s", session.DisplayName(), session.Address),
		Button{ID: "details_ok", Title: "Looks good"},
		Button{ID: "details_update", Title: "Update"},
	)
}

func (mp *MessageProcessor) handleGetNewNameAddress(session *Session, message, raw string) HandlerResult {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ReplyText("Please send your name and address like this:\n\n*Ada Obi, 12 Example Road, Lekki*")
	}

	if name, address, ok := strings.Cut(text, ","); ok {
		session.UserName = strings.TrimSpace(name)
		session.Address = strings.TrimSpace(address)
	} else {
		session.Address = text
	}
	mp.persistProfile(session)

	session.State = StateConfirmDetails
	return ReplyButtons(
		fmt.Sprintf("Updated! Please confirm:\n\n👤 %s\n📍 %s", session.DisplayName(), session.Address),
		Button{ID: "details_ok", Title: "Looks good"},
		Button{ID: "details_update", Title: "Update"},
	)
}

func (mp *MessageProcessor) handlePromptAddNote(session *Session, message, raw string) HandlerResult {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "note_yes", "add a note", "yes":
		session.State = StateAddNote
		return ReplyText("Go ahead, type your note for the kitchen. 📝")
	case "note_no", "no, continue", "no", "skip":
		session.State = StateConfirmOrder
		return mp.finalSummary(session)
	}
	return ReplyButtons(
		"Any note for the kitchen?",
		Button{ID: "note_yes", Title: "Add a note"},
		Button{ID: "note_no", Title: "No, continue"},
	)
}

func (mp *MessageProcessor) handleAddNote(session *Session, message, raw string) HandlerResult {
	session.Data["note"] = strings.TrimSpace(raw)
	session.State = StateConfirmOrder
	return mp.finalSummary(session)
}

func (mp *MessageProcessor) finalSummary(session *Session) HandlerResult {
	totals := mp.orders.Totals(session.Cart)
	text := cartSummaryText(session, totals)
	text = strings.TrimSuffix(text, "\n\nReply *confirm* to proceed, *add* for more items, or *remove* to take something out.")
	text += fmt.Sprintf("\n\n📍 Delivering to: %s", session.Address)
	if note := session.Data["note"]; note != "" {
		text += fmt.Sprintf("\n📝 Note: %s", note)
	}
	return ReplyButtons(
		text+"\n\nReady to pay?",
		Button{ID: "order_confirm", Title: "Confirm & Pay"},
		Button{ID: "order_cancel", Title: "Cancel"},
	)
}

func (mp *MessageProcessor) handleConfirmOrder(session *Session, message, raw string) HandlerResult {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "order_confirm", "confirm & pay", "confirm", "pay", "yes":
		if len(session.Cart) == 0 {
			return mp.emptyCartReset(session)
		}
		if session.Address == "" {
			return RedirectTo(HandlerLocation, "")
		}
		return mp.checkout(session)
	case "order_cancel", "cancel", "no":
		session.Cart = nil
		return RedirectTo(HandlerGreeting, "")
	}
	return mp.finalSummary(session)
}

// checkout creates the order and asks the payment monitor for a link. On
// gateway failure the session returns to the summary so retrying reuses the
// same order.
func (mp *MessageProcessor) checkout(session *Session) HandlerResult {
	if mp.monitor == nil {
		return ReplyText("Payments are temporarily unavailable. Please try again shortly. 🙏")
	}

	if session.OrderID == 0 {
		order, err := mp.orders.CreateFromSession(session, session.Data["note"])
		if err != nil {
			return ReplyText("Something went wrong creating your order. Please try again. 🙏")
		}
		session.OrderID = order.ID
	}

	text, err := mp.monitor.CreatePaymentLink(session)
	if err != nil {
		session.Handler = HandlerOrder
		session.State = StateOrderSummary
		return ReplyText("We couldn't generate your payment link just now. Please type *confirm* to try again. 🙏")
	}

	session.Handler = HandlerPayment
	session.State = StateAwaitingPayment
	return ReplyText(text)
}

func (mp *MessageProcessor) handlePaymentPending(session *Session, message, raw string) HandlerResult {
	return RedirectTo(HandlerPayment, message)
}

func (mp *MessageProcessor) emptyCartReset(session *Session) HandlerResult {
	wasEmpty := emptyCartText()
	session.Handler = HandlerGreeting
	session.State = StateGreeting
	session.OrderID = 0
	session.PaymentReference = ""
	return ReplyText(wasEmpty + "\n\n" + mainMenuText(session))
}

func removeListText(session *Session) string {
	var b strings.Builder
	b.WriteString("Which item should I remove?\n\n")
	for i, item := range session.Cart {
		b.WriteString(fmt.Sprintf("%d. %s x%d\n", i+1, item.Name, item.Quantity))
	}
	return b.String()
}
