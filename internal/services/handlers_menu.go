package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/utils"
)

// Menu flow: catalog browsing and item selection.

func (mp *MessageProcessor) handleMenuBrowse(session *Session, message, raw string) HandlerResult {
	products, err := mp.orders.AvailableProducts()
	if err != nil {
		return ReplyText("We couldn't load the menu right now. Please try again in a moment. 🙏")
	}

	choice := strings.ToLower(strings.TrimSpace(message))
	if choice == "" {
		return ReplyText(menuCatalogText(products))
	}
	if choice == "done" {
		return RedirectTo(HandlerOrder, "")
	}

	// Category names drill into a filtered list.
	if cat := matchCategory(products, choice); cat != "" {
		session.State = StateCategorySelected
		session.Data["category"] = cat
		return ReplyText(categoryText(products, cat))
	}

	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(products) {
		return mp.selectProduct(session, products[n-1])
	}

	return ReplyText("Please reply with the number of a dish.\n\n" + menuCatalogText(products))
}

func (mp *MessageProcessor) handleCategorySelected(session *Session, message, raw string) HandlerResult {
	products, err := mp.orders.AvailableProducts()
	if err != nil {
		return ReplyText("We couldn't load the menu right now. Please try again in a moment. 🙏")
	}
	cat := session.Data["category"]
	filtered := filterByCategory(products, cat)

	choice := strings.ToLower(strings.TrimSpace(message))
	if choice == "all" || cat == "" {
		session.State = StateMenu
		delete(session.Data, "category")
		return ReplyText(menuCatalogText(products))
	}
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(filtered) {
		return mp.selectProduct(session, filtered[n-1])
	}
	return ReplyText("Please reply with the number of a dish, or *all* for the full menu.\n\n" + categoryText(products, cat))
}

// selectProduct stages an item and hands over to the quantity prompt.
func (mp *MessageProcessor) selectProduct(session *Session, product *models.Product) HandlerResult {
	session.Handler = HandlerOrder
	session.State = StateQuantity
	session.Data["pending_item"] = product.Name
	session.Data["pending_product_id"] = strconv.FormatUint(uint64(product.ID), 10)
	session.Data["pending_price"] = product.Price.String()
	return ReplyText(fmt.Sprintf("%s - %s 😋\n\nHow many portions would you like?", product.Name, utils.FormatNaira(product.Price)))
}

func matchCategory(products []*models.Product, text string) string {
	for _, p := range products {
		if p.Category != "" && strings.EqualFold(p.Category, text) {
			return p.Category
		}
	}
	return ""
}

func filterByCategory(products []*models.Product, category string) []*models.Product {
	var out []*models.Product
	for _, p := range products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}

func categoryText(products []*models.Product, category string) string {
	filtered := filterByCategory(products, category)
	if len(filtered) == 0 {
		return "Nothing in that category right now. Type *all* to see the full menu."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*%s* 🍽️\n\n", category))
	for i, p := range filtered {
		b.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, p.Name, utils.FormatNaira(p.Price)))
	}
	b.WriteString("\nReply with a number, or *all* for the full menu.")
	return b.String()
}
