package services

import (
	"strings"

	"github.com/lolakitchen/chowbot-backend/internal/models"
)

// Feedback flow: rating buttons after a confirmed order, then an optional
// comment. Closing the flow clears the session entirely so the next message
// starts a brand new conversation.

func feedbackPrompt() HandlerResult {
	return ReplyButtons(
		"How was your experience ordering with us? 💬",
		Button{ID: models.RatingExcellent, Title: "Excellent 🤩"},
		Button{ID: models.RatingGood, Title: "Good 🙂"},
		Button{ID: models.RatingBad, Title: "Not great 😕"},
	)
}

func (mp *MessageProcessor) handleFeedbackRating(session *Session, message, raw string) HandlerResult {
	rating := ""
	switch strings.ToLower(strings.TrimSpace(message)) {
	case models.RatingExcellent, "excellent 🤩", "1":
		rating = models.RatingExcellent
	case models.RatingGood, "good 🙂", "2":
		rating = models.RatingGood
	case models.RatingBad, "not great 😕", "3":
		rating = models.RatingBad
	case "skip", "no":
		mp.saveFeedback(session, models.RatingSkipped, "")
		mp.endConversation(session)
		return ReplyText("No problem at all. Thanks for ordering with Lola's Kitchen! 🧡")
	default:
		return feedbackPrompt()
	}

	session.Data["rating"] = rating
	session.State = StateFeedbackComment
	if rating == models.RatingBad {
		return ReplyText("We're really sorry to hear that. 😔 Please tell us what went wrong so we can fix it, or type *skip*.")
	}
	return ReplyText("Thank you! 🙏 Anything you'd like to add? Type a comment, or *skip*.")
}

func (mp *MessageProcessor) handleFeedbackComment(session *Session, message, raw string) HandlerResult {
	comment := strings.TrimSpace(raw)
	if strings.EqualFold(comment, "skip") {
		comment = ""
	}
	mp.saveFeedback(session, session.Data["rating"], comment)
	mp.endConversation(session)
	return ReplyText("Thanks for the feedback! We hope to serve you again soon. 🧡")
}

func (mp *MessageProcessor) saveFeedback(session *Session, rating, comment string) {
	fb := &models.Feedback{
		PhoneNumber: session.UserPhone,
		UserName:    session.UserName,
		OrderID:     session.RecentOrderID,
		Rating:      rating,
		Comment:     comment,
	}
	if err := mp.orders.SaveFeedback(fb); err != nil {
		// Feedback is best-effort.
		return
	}
}
