package services

import (
	"log"
	"strings"
)

// HandlerName identifies a conversational handler group.
type HandlerName string

// StateName identifies a step within a handler group.
type StateName string

// Handler groups
const (
	HandlerGreeting  HandlerName = "greeting"
	HandlerMenu      HandlerName = "menu"
	HandlerOrder     HandlerName = "order"
	HandlerPayment   HandlerName = "payment"
	HandlerFeedback  HandlerName = "feedback"
	HandlerLocation  HandlerName = "location"
	HandlerAI        HandlerName = "ai"
	HandlerEnquiry   HandlerName = "enquiry"
	HandlerFAQ       HandlerName = "faq"
	HandlerComplaint HandlerName = "complaint"
)

// States per handler group
const (
	StateStart                 StateName = "start"
	StateCollectPreferredName  StateName = "collect_preferred_name"
	StateCollectDeliveryAddr   StateName = "collect_delivery_address"
	StateGreeting              StateName = "greeting"
	StateMenu                  StateName = "menu"
	StateCategorySelected      StateName = "category_selected"
	StateQuantity              StateName = "quantity"
	StateOrderSummary          StateName = "order_summary"
	StateRemoveItemSelection   StateName = "remove_item_selection"
	StateConfirmDetails        StateName = "confirm_details"
	StateGetNewNameAddress     StateName = "get_new_name_address"
	StateConfirmOrder          StateName = "confirm_order"
	StatePromptAddNote         StateName = "prompt_add_note"
	StateAddNote               StateName = "add_note"
	StatePaymentPending        StateName = "payment_pending"
	StatePaymentProcessing     StateName = "payment_processing"
	StateAwaitingPayment       StateName = "awaiting_payment"
	StateOrderConfirmation     StateName = "order_confirmation"
	StateFeedbackRating        StateName = "feedback_rating"
	StateFeedbackComment       StateName = "feedback_comment"
	StateAddressCollectionMenu StateName = "address_collection_menu"
	StateAwaitingLiveLocation  StateName = "awaiting_live_location"
	StateMapsSearchInput       StateName = "maps_search_input"
	StateManualAddressEntry    StateName = "manual_address_entry"
	StateConfirmDetectedLoc    StateName = "confirm_detected_location"
	StateConfirmMapsResult     StateName = "confirm_maps_result"
	StateConfirmCoordinates    StateName = "confirm_coordinates"
	StateAIMenuSelection       StateName = "ai_menu_selection"
	StateLolaChat              StateName = "lola_chat"
	StateAIBulkOrder           StateName = "ai_bulk_order"
	StateAIOrderConfirmation   StateName = "ai_order_confirmation"
	StateAIOrderClarification  StateName = "ai_order_clarification"
	StateEnquiryMessage        StateName = "enquiry_message"
	StateFAQMenu               StateName = "faq_menu"
	StateComplaintMessage      StateName = "complaint_message"
)

// Button is one quick-reply option. WhatsApp allows at most three per message.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Reply is the outbound payload produced by handling one inbound message.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

type resultKind int

const (
	resultNone resultKind = iota
	resultReply
	resultRedirect
)

// HandlerResult is what a state handler returns: either a reply to send, or
// a redirect instructing the machine to re-dispatch under another handler.
type HandlerResult struct {
	kind     resultKind
	reply    Reply
	target   HandlerName
	forwards string
}

// ReplyText builds a plain text reply result.
func ReplyText(text string) HandlerResult {
	return HandlerResult{kind: resultReply, reply: Reply{Text: text}}
}

// ReplyButtons builds a reply with quick-reply buttons (max 3).
func ReplyButtons(text string, buttons ...Button) HandlerResult {
	if len(buttons) > 3 {
		buttons = buttons[:3]
	}
	return HandlerResult{kind: resultReply, reply: Reply{Text: text, Buttons: buttons}}
}

// RedirectTo re-dispatches the given message under another handler group.
func RedirectTo(target HandlerName, message string) HandlerResult {
	return HandlerResult{kind: resultRedirect, target: target, forwards: message}
}

// handlerFunc processes one message for one (handler, state) pair.
type handlerFunc func(mp *MessageProcessor, session *Session, message, raw string) HandlerResult

// maxRedirectHops bounds chained redirects so a routing bug cannot loop.
const maxRedirectHops = 10

// Global escape keywords that reset the conversation from any state.
var escapeKeywords = map[string]bool{
	"menu":  true,
	"back":  true,
	"start": true,
	"hello": true,
	"hi":    true,
}

// MessageProcessor routes inbound messages through the two-level dispatch
// table and owns the conversational handlers.
type MessageProcessor struct {
	sessions *SessionManager
	orders   *OrderService
	monitor  *PaymentMonitor // nil until SetPaymentMonitor, wired in main.go
	leads    *LeadTracker    // optional
	geocoder Geocoder        // optional
	parser   OrderParser     // optional; falls back to the rule-based parser
	dispatch map[HandlerName]map[StateName]handlerFunc
}

// NewMessageProcessor builds the processor and its dispatch table.
func NewMessageProcessor(sessions *SessionManager, orders *OrderService, leads *LeadTracker) *MessageProcessor {
	mp := &MessageProcessor{
		sessions: sessions,
		orders:   orders,
		leads:    leads,
	}
	mp.dispatch = map[HandlerName]map[StateName]handlerFunc{
		HandlerGreeting: {
			StateStart:                (*MessageProcessor).handleGreetingStart,
			StateGreeting:             (*MessageProcessor).handleGreetingMenu,
			StateCollectPreferredName: (*MessageProcessor).handleCollectPreferredName,
			StateCollectDeliveryAddr:  (*MessageProcessor).handleCollectDeliveryAddress,
		},
		HandlerMenu: {
			StateMenu:             (*MessageProcessor).handleMenuBrowse,
			StateCategorySelected: (*MessageProcessor).handleCategorySelected,
		},
		HandlerOrder: {
			StateQuantity:            (*MessageProcessor).handleQuantity,
			StateOrderSummary:        (*MessageProcessor).handleOrderSummary,
			StateRemoveItemSelection: (*MessageProcessor).handleRemoveItemSelection,
			StateConfirmDetails:      (*MessageProcessor).handleConfirmDetails,
			StateGetNewNameAddress:   (*MessageProcessor).handleGetNewNameAddress,
			StateConfirmOrder:        (*MessageProcessor).handleConfirmOrder,
			StatePromptAddNote:       (*MessageProcessor).handlePromptAddNote,
			StateAddNote:             (*MessageProcessor).handleAddNote,
			StatePaymentPending:      (*MessageProcessor).handlePaymentPending,
		},
		HandlerPayment: {
			StatePaymentProcessing: (*MessageProcessor).handleAwaitingPayment,
			StateAwaitingPayment:   (*MessageProcessor).handleAwaitingPayment,
			StateOrderConfirmation: (*MessageProcessor).handleOrderConfirmation,
		},
		HandlerFeedback: {
			StateFeedbackRating:  (*MessageProcessor).handleFeedbackRating,
			StateFeedbackComment: (*MessageProcessor).handleFeedbackComment,
		},
		HandlerLocation: {
			StateAddressCollectionMenu: (*MessageProcessor).handleAddressCollectionMenu,
			StateAwaitingLiveLocation:  (*MessageProcessor).handleAwaitingLiveLocation,
			StateMapsSearchInput:       (*MessageProcessor).handleMapsSearchInput,
			StateManualAddressEntry:    (*MessageProcessor).handleManualAddressEntry,
			StateConfirmDetectedLoc:    (*MessageProcessor).handleConfirmDetectedLocation,
			StateConfirmMapsResult:     (*MessageProcessor).handleConfirmMapsResult,
			StateConfirmCoordinates:    (*MessageProcessor).handleConfirmCoordinates,
		},
		HandlerAI: {
			StateAIMenuSelection:      (*MessageProcessor).handleAIMenuSelection,
			StateLolaChat:             (*MessageProcessor).handleLolaChat,
			StateAIBulkOrder:          (*MessageProcessor).handleAIBulkOrder,
			StateAIOrderConfirmation:  (*MessageProcessor).handleAIOrderConfirmation,
			StateAIOrderClarification: (*MessageProcessor).handleAIOrderClarification,
		},
		HandlerEnquiry: {
			StateEnquiryMessage: (*MessageProcessor).handleEnquiryMessage,
		},
		HandlerFAQ: {
			StateFAQMenu: (*MessageProcessor).handleFAQMenu,
		},
		HandlerComplaint: {
			StateComplaintMessage: (*MessageProcessor).handleComplaintMessage,
		},
	}
	return mp
}

// SetPaymentMonitor wires the payment monitor after construction; the two
// reference each other so one side has to be set late.
func (mp *MessageProcessor) SetPaymentMonitor(monitor *PaymentMonitor) {
	mp.monitor = monitor
}

// Handle routes one inbound message and returns the reply to send. It never
// returns an error to the caller: every failure path resolves to a friendly
// reset-to-greeting reply.
func (mp *MessageProcessor) Handle(userPhone, messageText, rawText, displayName string) *Reply {
	// Fetch first so a timed-out session is reset before the activity clock
	// is refreshed; touching first would revive it mid-flow.
	session, created := mp.sessions.GetOrCreate(userPhone)
	mp.sessions.TouchActivity(userPhone)
	if session.UserName == "" && displayName != "" {
		session.UserName = displayName
	}
	if created {
		mp.hydrateProfile(session)
	}
	if mp.leads != nil {
		mp.leads.TrackInteraction(session)
	}

	normalized := strings.ToLower(strings.TrimSpace(messageText))

	// Global escape keywords beat every state, including mid-flow ones.
	if escapeKeywords[normalized] {
		return mp.resetToGreeting(session, "")
	}

	message := messageText
	for hop := 0; hop < maxRedirectHops; hop++ {
		states, ok := mp.dispatch[session.Handler]
		if !ok {
			log.Printf("No handler group %q for %s, resetting", session.Handler, userPhone)
			return mp.resetToGreeting(session, "")
		}
		fn, ok := states[session.State]
		if !ok {
			log.Printf("No state %q in handler %q for %s, resetting", session.State, session.Handler, userPhone)
			return mp.resetToGreeting(session, "")
		}

		result := mp.invoke(fn, session, message, rawText)
		switch result.kind {
		case resultReply:
			mp.sessions.Persist(session)
			return &result.reply
		case resultRedirect:
			session.Handler = result.target
			session.State = entryState(result.target)
			mp.sessions.Persist(session)
			message = result.forwards
		default:
			log.Printf("Handler (%s,%s) returned nothing for %s, resetting", session.Handler, session.State, userPhone)
			return mp.resetToGreeting(session, "")
		}
	}

	log.Printf("Redirect hop limit reached for %s, resetting", userPhone)
	return mp.resetToGreeting(session, "")
}

// invoke runs one handler with panic recovery so a broken state never hangs
// the conversation.
func (mp *MessageProcessor) invoke(fn handlerFunc, session *Session, message, raw string) (result HandlerResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Handler panic for %s in (%s,%s): %v", session.UserPhone, session.Handler, session.State, r)
			result = HandlerResult{}
		}
	}()
	return fn(mp, session, message, raw)
}

// entryState maps a redirect target to the state its flow begins in.
func entryState(handler HandlerName) StateName {
	switch handler {
	case HandlerGreeting:
		return StateGreeting
	case HandlerMenu:
		return StateMenu
	case HandlerOrder:
		return StateOrderSummary
	case HandlerPayment:
		return StateAwaitingPayment
	case HandlerFeedback:
		return StateFeedbackRating
	case HandlerLocation:
		return StateAddressCollectionMenu
	case HandlerAI:
		return StateAIMenuSelection
	case HandlerEnquiry:
		return StateEnquiryMessage
	case HandlerFAQ:
		return StateFAQMenu
	case HandlerComplaint:
		return StateComplaintMessage
	default:
		return StateGreeting
	}
}

// resetToGreeting forces the session back to the main menu. An optional
// prefix line explains why (empty cart, error recovery).
func (mp *MessageProcessor) resetToGreeting(session *Session, prefix string) *Reply {
	wasFresh := mp.sessions.IsFreshlyReset(session.UserPhone)

	session.Handler = HandlerGreeting
	session.State = StateGreeting
	session.Cart = nil
	session.OrderID = 0
	session.PaymentReference = ""
	session.Data = make(map[string]string)
	mp.sessions.Persist(session)

	if wasFresh && prefix == "" {
		// A greeting just went out moments ago; stay quiet rather than
		// double-greeting. Callers skip empty replies.
		return &Reply{}
	}

	text := mainMenuText(session)
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	return &Reply{Text: text}
}

// endConversation closes out a completed flow. The stored session is dropped
// and the local copy reset, so the persist that follows the handler's reply
// re-creates it at the greeting state with the customer's identity intact.
func (mp *MessageProcessor) endConversation(session *Session) {
	mp.sessions.Clear(session.UserPhone)
	session.Handler = HandlerGreeting
	session.State = StateStart
	session.Cart = nil
	session.OrderID = 0
	session.PaymentReference = ""
	session.Data = make(map[string]string)
}

// hydrateProfile refreshes session identity from the persistent user store.
func (mp *MessageProcessor) hydrateProfile(session *Session) {
	if mp.orders == nil {
		return
	}
	detail, err := mp.orders.UserDetail(session.UserPhone)
	if err != nil {
		return
	}
	if session.UserName == "" {
		session.UserName = detail.Name
	}
	if session.Preferred == "" {
		session.Preferred = detail.PreferredName
	}
	if session.Address == "" {
		session.Address = detail.BestAddress()
	}
}
