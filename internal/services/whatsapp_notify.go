package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier delivers outbound WhatsApp messages. Fire-and-forget: the bot
// never waits on delivery receipts.
type Notifier interface {
	SendText(recipient, text string) error
	SendButtons(recipient, text string, buttons []Button) error
}

var (
	notifierInstance Notifier
	notifierMu       sync.Mutex
)

// SetNotifier sets the global notifier instance (call from main.go)
func SetNotifier(n Notifier) {
	notifierMu.Lock()
	defer notifierMu.Unlock()
	notifierInstance = n
}

// GetNotifier returns the global notifier instance
func GetNotifier() Notifier {
	notifierMu.Lock()
	defer notifierMu.Unlock()
	return notifierInstance
}

// TwilioNotifier sends messages through the Twilio WhatsApp API.
type TwilioNotifier struct {
	client            *twilio.RestClient
	fromNumber        string
	buttonTemplateSid string
}

// NewTwilioNotifier creates a notifier from TWILIO_* environment variables.
func NewTwilioNotifier() *TwilioNotifier {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	fromNumber := os.Getenv("TWILIO_WHATSAPP_NUMBER")

	if accountSid == "" || authToken == "" {
		log.Println("⚠️  Twilio credentials not set - outbound messages will fail")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioNotifier{
		client:            client,
		fromNumber:        fromNumber,
		buttonTemplateSid: os.Getenv("TWILIO_BUTTON_TEMPLATE_SID"),
	}
}

// SendText sends a plain WhatsApp message.
func (t *TwilioNotifier) SendText(recipient, text string) error {
	params := &api.CreateMessageParams{}
	params.SetFrom(whatsappAddr(t.fromNumber))
	params.SetTo(whatsappAddr(recipient))
	params.SetBody(text)

	_, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("Failed to send WhatsApp message to %s: %v", recipient, err)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendButtons sends a message with quick-reply options. With a content
// template configured the buttons go out as a real interactive message;
// otherwise Twilio's plain API has no button payload, so the options are
// rendered as numbered lines. Handlers accept both button ids and numbers.
func (t *TwilioNotifier) SendButtons(recipient, text string, buttons []Button) error {
	if len(buttons) > 3 {
		buttons = buttons[:3]
	}

	if t.buttonTemplateSid != "" && len(buttons) > 0 {
		vars := map[string]string{"1": text}
		for i, btn := range buttons {
			vars[fmt.Sprintf("%d", i+2)] = btn.Title
		}
		encoded, err := json.Marshal(vars)
		if err == nil {
			params := &api.CreateMessageParams{}
			params.SetFrom(whatsappAddr(t.fromNumber))
			params.SetTo(whatsappAddr(recipient))
			params.SetContentSid(t.buttonTemplateSid)
			params.SetContentVariables(string(encoded))
			if _, err := t.client.Api.CreateMessage(params); err == nil {
				return nil
			}
			log.Printf("Template send to %s failed, falling back to plain text", recipient)
		}
	}

	var b strings.Builder
	b.WriteString(text)
	if len(buttons) > 0 {
		b.WriteString("\n")
		for i, btn := range buttons {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, btn.Title))
		}
	}
	return t.SendText(recipient, b.String())
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
