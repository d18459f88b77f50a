package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lolakitchen/chowbot-backend/internal/utils"
)

// AI flow: "chat with Lola" small talk and bulk order parsing. The parser is
// pluggable so an LLM backend can replace the rule-based default.

// ParsedItem is one line extracted from a free-text bulk order.
type ParsedItem struct {
	Name     string
	Quantity int
}

// OrderParser turns a free-text order ("2 jollof rice and 1 chicken") into
// structured items. Unparseable lines come back in leftovers.
type OrderParser interface {
	ParseOrder(text string) (items []ParsedItem, leftovers []string)
}

// SetOrderParser wires a custom parsing backend.
func (mp *MessageProcessor) SetOrderParser(p OrderParser) {
	mp.parser = p
}

func (mp *MessageProcessor) orderParser() OrderParser {
	if mp.parser != nil {
		return mp.parser
	}
	return ruleBasedParser{}
}

func aiMenu() HandlerResult {
	return ReplyButtons(
		"Hi, I'm Lola! 🤖 I can take your whole order in one message, or just chat.",
		Button{ID: "ai_bulk", Title: "Place a bulk order"},
		Button{ID: "ai_chat", Title: "Just chat"},
	)
}

func (mp *MessageProcessor) handleAIMenuSelection(session *Session, message, raw string) HandlerResult {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "ai_bulk", "place a bulk order", "bulk", "1":
		session.State = StateAIBulkOrder
		return ReplyText("Great! Tell me everything you'd like in one message, for example:\n\n*2 Jollof Rice, 1 Fried Chicken, 3 Moi Moi*")
	case "ai_chat", "just chat", "chat", "2":
		session.State = StateLolaChat
		return ReplyText("I'm all ears! 😊 Ask me anything about our food. Type *menu* whenever you want the main menu.")
	case "":
		return aiMenu()
	}
	return aiMenu()
}

func (mp *MessageProcessor) handleLolaChat(session *Session, message, raw string) HandlerResult {
	text := strings.ToLower(strings.TrimSpace(message))
	switch {
	case strings.Contains(text, "order"):
		session.State = StateAIBulkOrder
		return ReplyText("Let's do it! Tell me everything you'd like in one message, for example:\n\n*2 Jollof Rice, 1 Fried Chicken*")
	case strings.Contains(text, "price") || strings.Contains(text, "cost") || strings.Contains(text, "much"):
		products, err := mp.orders.AvailableProducts()
		if err != nil || len(products) == 0 {
			return ReplyText("Our menu is being updated right now, check back shortly! 🙏")
		}
		return ReplyText(menuCatalogText(products))
	case strings.Contains(text, "deliver"):
		return ReplyText("We deliver across Lagos, usually within 45-90 minutes of payment. 🚴")
	}
	return ReplyText("That sounds lovely! 😊 Want me to take an order? Just tell me what you'd like, e.g. *2 Jollof Rice*. Or type *menu* for the main menu.")
}

func (mp *MessageProcessor) handleAIBulkOrder(session *Session, message, raw string) HandlerResult {
	items, leftovers := mp.orderParser().ParseOrder(raw)
	if len(items) == 0 {
		return ReplyText("Hmm, I couldn't read any items from that. 😅 Try something like:\n\n*2 Jollof Rice, 1 Fried Chicken*")
	}

	resolved, unknown := mp.resolveParsedItems(items)
	unknown = append(unknown, leftovers...)

	if len(resolved) == 0 {
		session.State = StateAIOrderClarification
		return ReplyText(fmt.Sprintf("I couldn't match %s to our menu. 😕 Could you rephrase, or type *1* to browse the menu instead?", strings.Join(unknown, ", ")))
	}

	stageParsedCart(session, resolved)
	session.State = StateAIOrderConfirmation

	text := "Here's what I got: 📝\n\n"
	for _, item := range resolved {
		text += fmt.Sprintf("• %s x%d - %s\n", item.Name, item.Quantity, utils.FormatNaira(item.Subtotal()))
	}
	if len(unknown) > 0 {
		text += fmt.Sprintf("\n(I couldn't match: %s)\n", strings.Join(unknown, ", "))
	}
	return ReplyButtons(text+"\nShall I add these to your cart?",
		Button{ID: "ai_yes", Title: "Yes, add them"},
		Button{ID: "ai_no", Title: "Start over"},
	)
}

func (mp *MessageProcessor) handleAIOrderConfirmation(session *Session, message, raw string) HandlerResult {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "ai_yes", "yes, add them", "yes", "confirm":
		if mp.leads != nil {
			mp.leads.TrackCartActivity(session)
		}
		return RedirectTo(HandlerOrder, "confirm")
	case "ai_no", "start over", "no":
		session.Cart = nil
		session.State = StateAIBulkOrder
		return ReplyText("No problem, let's try again. What would you like?")
	}
	return ReplyButtons("Shall I add those items to your cart?",
		Button{ID: "ai_yes", Title: "Yes, add them"},
		Button{ID: "ai_no", Title: "Start over"},
	)
}

func (mp *MessageProcessor) handleAIOrderClarification(session *Session, message, raw string) HandlerResult {
	if strings.TrimSpace(message) == "1" {
		return RedirectTo(HandlerMenu, "")
	}
	session.State = StateAIBulkOrder
	return mp.handleAIBulkOrder(session, message, raw)
}

// resolveParsedItems matches parsed names against the catalog.
func (mp *MessageProcessor) resolveParsedItems(items []ParsedItem) (resolved []CartItem, unknown []string) {
	for _, item := range items {
		product, err := mp.orders.ProductByName(item.Name)
		if err != nil {
			unknown = append(unknown, item.Name)
			continue
		}
		resolved = append(resolved, CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}
	return resolved, unknown
}

func stageParsedCart(session *Session, items []CartItem) {
	for _, item := range items {
		addToCart(session, item)
	}
}

// ruleBasedParser handles "2 jollof rice, 1x chicken and 3 moi moi" shapes.
type ruleBasedParser struct{}

var orderLineRe = regexp.MustCompile(`(?i)(\d+)\s*x?\s*([a-z][a-z '-]*[a-z])`)

func (ruleBasedParser) ParseOrder(text string) ([]ParsedItem, []string) {
	var items []ParsedItem
	var leftovers []string

	parts := splitOrderText(text)
	for _, part := range parts {
		m := orderLineRe.FindStringSubmatch(part)
		if m == nil {
			if strings.TrimSpace(part) != "" {
				leftovers = append(leftovers, strings.TrimSpace(part))
			}
			continue
		}
		qty, err := strconv.Atoi(m[1])
		if err != nil || qty < 1 {
			leftovers = append(leftovers, strings.TrimSpace(part))
			continue
		}
		items = append(items, ParsedItem{Name: strings.TrimSpace(m[2]), Quantity: qty})
	}
	return items, leftovers
}

func splitOrderText(text string) []string {
	replacer := strings.NewReplacer("\n", ",", ";", ",", " and ", ",", " And ", ",")
	return strings.Split(replacer.Replace(text), ",")
}
