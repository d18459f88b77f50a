package services

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/lolakitchen/chowbot-backend/internal/models"
)

// Enquiry, FAQ and complaint flows. Enquiries and complaints are one-shot:
// the message becomes a ticket and the session is cleared so the next text
// starts fresh.

func (mp *MessageProcessor) handleEnquiryMessage(session *Session, message, raw string) HandlerResult {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ReplyText("What would you like to ask? Type your enquiry and we'll get back to you. 💬")
	}

	ticketID := uuid.NewString()
	enquiry := &models.Enquiry{
		TicketID:    ticketID,
		PhoneNumber: session.UserPhone,
		UserName:    session.UserName,
		Message:     text,
	}
	if err := mp.orders.SaveEnquiry(enquiry); err != nil {
		log.Printf("Failed to save enquiry from %s: %v", session.UserPhone, err)
		return ReplyText("Sorry, we couldn't log your enquiry just now. Please try again in a moment. 🙏")
	}

	mp.notifyOperator(fmt.Sprintf("📨 New enquiry from %s (%s):\n\n%s", session.DisplayName(), session.UserPhone, text))
	mp.endConversation(session)
	return ReplyText(fmt.Sprintf("Thanks! Your enquiry has been logged (ref %s) and our team will reply shortly. 💬", shortTicket(ticketID)))
}

func (mp *MessageProcessor) handleFAQMenu(session *Session, message, raw string) HandlerResult {
	return ReplyText(faqText())
}

func (mp *MessageProcessor) handleComplaintMessage(session *Session, message, raw string) HandlerResult {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ReplyText("We're sorry something went wrong. 😔 Please describe what happened and we'll make it right.")
	}

	ticketID := uuid.NewString()
	complaint := &models.Complaint{
		TicketID:    ticketID,
		PhoneNumber: session.UserPhone,
		UserName:    session.UserName,
		Message:     text,
	}
	if err := mp.orders.SaveComplaint(complaint); err != nil {
		log.Printf("Failed to save complaint from %s: %v", session.UserPhone, err)
		return ReplyText("Sorry, we couldn't log your complaint just now. Please try again in a moment. 🙏")
	}

	mp.notifyOperator(fmt.Sprintf("🚨 New complaint from %s (%s):\n\n%s", session.DisplayName(), session.UserPhone, text))
	mp.endConversation(session)
	return ReplyText(fmt.Sprintf("We're really sorry about this. 😔 Your complaint has been logged (ref %s) and someone will reach out to you today.", shortTicket(ticketID)))
}

// notifyOperator forwards a message to the merchant channel when one is
// configured.
func (mp *MessageProcessor) notifyOperator(text string) {
	cfg := mp.orders.Config()
	if cfg.MerchantPhone == "" {
		return
	}
	notifier := GetNotifier()
	if notifier == nil {
		return
	}
	if err := notifier.SendText(cfg.MerchantPhone, text); err != nil {
		log.Printf("Failed to notify operator: %v", err)
	}
}

func shortTicket(ticketID string) string {
	if len(ticketID) >= 8 {
		return strings.ToUpper(ticketID[:8])
	}
	return strings.ToUpper(ticketID)
}
