package services

import (
	"fmt"
	"strings"

	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/utils"
)

// Message builders shared by several handlers. Kept in one place so the
// bot's voice stays consistent.

func mainMenuText(session *Session) string {
	name := session.Preferred
	if name == "" {
		name = utils.FirstName(session.UserName)
	}
	greeting := "Welcome to Lola's Kitchen! 🍲"
	if name != "" {
		greeting = fmt.Sprintf("Welcome back, %s! 🍲", name)
	}
	return greeting + `

What would you like to do today?

1️⃣ Browse our menu
2️⃣ Chat with Lola (AI assistant)
3️⃣ Make an enquiry
4️⃣ FAQs
5️⃣ Make a complaint

Reply with a number, or type *menu* anytime to come back here.`
}

func menuCatalogText(products []*models.Product) string {
	if len(products) == 0 {
		return "Our menu is being updated right now. Please check back shortly! 🙏"
	}

	var b strings.Builder
	b.WriteString("Here's what's cooking today 🍛\n\n")
	for i, p := range products {
		line := fmt.Sprintf("%d. %s - %s", i+1, p.Name, utils.FormatNaira(p.Price))
		if p.Variant != "" {
			line = fmt.Sprintf("%d. %s (%s) - %s", i+1, p.Name, p.Variant, utils.FormatNaira(p.Price))
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\nReply with the number of the dish you want, or type *done* to review your cart.")
	return b.String()
}

func cartSummaryText(session *Session, totals OrderTotals) string {
	var b strings.Builder
	b.WriteString("🛒 *Your order so far:*\n\n")
	for _, item := range session.Cart {
		b.WriteString(fmt.Sprintf("• %s x%d - %s\n", item.Name, item.Quantity, utils.FormatNaira(item.Subtotal())))
	}
	b.WriteString(fmt.Sprintf("\nSubtotal: %s", utils.FormatNaira(totals.Subtotal)))
	b.WriteString(fmt.Sprintf("\nDelivery fee: %s", utils.FormatNaira(totals.DeliveryFee)))
	b.WriteString(fmt.Sprintf("\nService charge: %s", utils.FormatNaira(totals.ServiceCharge)))
	b.WriteString(fmt.Sprintf("\n*Total: %s*", utils.FormatNaira(totals.Total)))
	b.WriteString("\n\nReply *confirm* to proceed, *add* for more items, or *remove* to take something out.")
	return b.String()
}

func itemizedLines(items []*models.OrderItem) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString(fmt.Sprintf("• %s x%d - %s\n", item.ItemName, item.Quantity, utils.FormatNaira(item.Subtotal)))
	}
	return b.String()
}

func emptyCartText() string {
	return "Your cart is empty, so there's nothing to check out yet. Let's start fresh! 🙂"
}

func faqText() string {
	return `*Frequently Asked Questions* 💬

*Delivery times?* We deliver within Lagos, 45-90 minutes after payment.
*Payment options?* Card, bank transfer and USSD via our secure Paystack link.
*Bulk orders?* Yes! Chat with Lola (option 2 on the menu) for party trays.
*Opening hours?* Tuesday to Sunday, 10am - 9pm.

Type *menu* to go back to the main menu.`
}
