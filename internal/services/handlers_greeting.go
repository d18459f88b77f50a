package services

import (
	"strings"

	"github.com/lolakitchen/chowbot-backend/internal/models"
	"github.com/lolakitchen/chowbot-backend/internal/utils"
)

// Greeting flow: first contact, name and address capture, main menu routing.

func (mp *MessageProcessor) handleGreetingStart(session *Session, message, raw string) HandlerResult {
	if session.Preferred == "" && session.UserName == "" {
		session.State = StateCollectPreferredName
		return ReplyText("Hello! 👋 Welcome to Lola's Kitchen.\n\nWhat name should we call you?")
	}
	session.State = StateGreeting
	return ReplyText(mainMenuText(session))
}

func (mp *MessageProcessor) handleCollectPreferredName(session *Session, message, raw string) HandlerResult {
	name := strings.TrimSpace(raw)
	if name == "" {
		return ReplyText("Sorry, I didn't catch that. What name should we call you?")
	}
	session.Preferred = utils.FirstName(name)
	if session.UserName == "" {
		session.UserName = name
	}

	if session.Address == "" {
		session.State = StateCollectDeliveryAddr
		return ReplyText("Nice to meet you, " + session.Preferred + "! 😊\n\nWhere should we deliver your orders? Please type your delivery address.")
	}

	mp.persistProfile(session)
	session.State = StateGreeting
	return ReplyText(mainMenuText(session))
}

func (mp *MessageProcessor) handleCollectDeliveryAddress(session *Session, message, raw string) HandlerResult {
	address := strings.TrimSpace(raw)
	if address == "" {
		return ReplyText("Please type your delivery address so we know where to bring your food.")
	}
	session.Address = address
	mp.persistProfile(session)
	session.State = StateGreeting
	return ReplyText("Got it! 📍\n\n" + mainMenuText(session))
}

func (mp *MessageProcessor) handleGreetingMenu(session *Session, message, raw string) HandlerResult {
	choice := strings.ToLower(strings.TrimSpace(message))
	// Redirects land here with an empty message after deliberate actions
	// (order cancel, address saved with no cart); just show the menu.
	if choice == "" {
		return ReplyText(mainMenuText(session))
	}
	switch choice {
	case "1", "browse", "order", "food":
		return RedirectTo(HandlerMenu, "")
	case "2", "lola", "chat", "ai":
		return RedirectTo(HandlerAI, "")
	case "3", "enquiry":
		return RedirectTo(HandlerEnquiry, "")
	case "4", "faq", "faqs":
		return RedirectTo(HandlerFAQ, "")
	case "5", "complaint":
		return RedirectTo(HandlerComplaint, "")
	}
	return ReplyText("Sorry, I didn't understand that. 🙂\n\n" + mainMenuText(session))
}

// persistProfile writes the session's identity fields through to storage so
// returning customers skip the intake questions.
func (mp *MessageProcessor) persistProfile(session *Session) {
	detail := &models.UserDetail{
		PhoneNumber:   session.UserPhone,
		Name:          session.UserName,
		PreferredName: session.Preferred,
		Address:       session.Address,
	}
	if err := mp.orders.SaveUserDetail(detail); err != nil {
		// Profile persistence is best-effort; the session copy still works.
		return
	}
}
