package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VerifyData is the payment metadata a verification returns.
type VerifyData struct {
	Amount  int64  // minor units (kobo)
	Status  string // provider status string, e.g. "success"
	Channel string // card, bank, ussd...
}

// PaymentGateway creates hosted payment links and verifies references.
type PaymentGateway interface {
	CreateLink(amountKobo int64, reference, email string, metadata map[string]interface{}) (string, error)
	Verify(reference string) (bool, *VerifyData, error)
}

// PaystackClient talks to the Paystack REST API.
type PaystackClient struct {
	secretKey   string
	callbackURL string
	baseURL     string
	httpClient  *http.Client
}

// NewPaystackClient creates a Paystack gateway client.
func NewPaystackClient(secretKey, callbackURL string) *PaystackClient {
	return &PaystackClient{
		secretKey:   secretKey,
		callbackURL: callbackURL,
		baseURL:     "https://api.paystack.co",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type paystackInitRequest struct {
	Amount      int64                  `json:"amount"`
	Email       string                 `json:"email"`
	Reference   string                 `json:"reference"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// CreateLink initializes a transaction and returns the hosted checkout URL.
func (p *PaystackClient) CreateLink(amountKobo int64, reference, email string, metadata map[string]interface{}) (string, error) {
	if p.secretKey == "" {
		return "", fmt.Errorf("paystack secret key not configured")
	}

	payload := paystackInitRequest{
		Amount:      amountKobo,
		Email:       email,
		Reference:   reference,
		CallbackURL: p.callbackURL,
		Metadata:    metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paystack initialize failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed paystackInitResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("paystack initialize: bad response: %w", err)
	}
	if !parsed.Status || parsed.Data.AuthorizationURL == "" {
		return "", fmt.Errorf("paystack initialize rejected: %s", parsed.Message)
	}
	return parsed.Data.AuthorizationURL, nil
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status  string `json:"status"`
		Amount  int64  `json:"amount"`
		Channel string `json:"channel"`
	} `json:"data"`
}

// Verify checks whether a reference has been paid.
func (p *PaystackClient) Verify(reference string) (bool, *VerifyData, error) {
	if p.secretKey == "" {
		return false, nil, fmt.Errorf("paystack secret key not configured")
	}

	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return false, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("paystack verify failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, err
	}

	var parsed paystackVerifyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return false, nil, fmt.Errorf("paystack verify: bad response: %w", err)
	}

	data := &VerifyData{
		Amount:  parsed.Data.Amount,
		Status:  parsed.Data.Status,
		Channel: parsed.Data.Channel,
	}
	verified := parsed.Status && parsed.Data.Status == "success"
	return verified, data, nil
}
