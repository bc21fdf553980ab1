package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manana-app/manana/internal/pkg/env"
)

const defaultMercadoPagoAPIBaseURL = "https://api.mercadopago.com"

type MercadoPagoClient struct {
	AccessToken string
	APIBaseURL  string

	HTTPClient *http.Client
}

func NewMercadoPagoClientFromEnv() *MercadoPagoClient {
	return &MercadoPagoClient{
		AccessToken: strings.TrimSpace(env.GetEnv("MP_ACCESS_TOKEN", "")),
		APIBaseURL:  strings.TrimRight(env.GetEnv("MP_API_BASE_URL", defaultMercadoPagoAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreatePaymentRequest charges a tokenized card directly.
type CreatePaymentRequest struct {
	Token             string
	IssuerID          string
	PaymentMethodID   string
	Amount            float64
	Installments      int
	PayerEmail        string
	Description       string
	ExternalReference string
}

// CreatePreferenceRequest builds a hosted checkout for a one-time plan.
type CreatePreferenceRequest struct {
	Title             string
	Amount            float64
	PayerEmail        string
	ExternalReference string
	SuccessURL        string
	FailureURL        string
	PendingURL        string
}

// CheckoutPreference is the hosted checkout handle returned by the API.
type CheckoutPreference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePreapprovalRequest starts a recurring subscription.
type CreatePreapprovalRequest struct {
	Reason            string
	Amount            float64
	PayerEmail        string
	CardTokenID       string
	ExternalReference string
	BackURL           string
}

// PreapprovalResult is the created subscription plus its redirect target.
type PreapprovalResult struct {
	Preapproval
	InitPoint string
}

type rawPayment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
	DateApproved      string  `json:"date_approved"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

func (p *rawPayment) toPayment() *Payment {
	out := &Payment{
		ID:                p.ID,
		Status:            strings.TrimSpace(p.Status),
		StatusDetail:      strings.TrimSpace(p.StatusDetail),
		ExternalReference: strings.TrimSpace(p.ExternalReference),
		TransactionAmount: p.TransactionAmount,
		CurrencyID:        p.CurrencyID,
		PayerEmail:        strings.TrimSpace(p.Payer.Email),
	}
	if t, err := time.Parse(time.RFC3339, p.DateApproved); err == nil {
		out.DateApproved = &t
	}
	return out
}

type rawPreapproval struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
	PayerEmail        string `json:"payer_email"`
	NextPaymentDate   string `json:"next_payment_date"`
	Reason            string `json:"reason"`
	InitPoint         string `json:"init_point"`
	AutoRecurring     struct {
		TransactionAmount float64 `json:"transaction_amount"`
	} `json:"auto_recurring"`
}

func (p *rawPreapproval) toPreapproval() *Preapproval {
	out := &Preapproval{
		ID:                strings.TrimSpace(p.ID),
		Status:            strings.TrimSpace(p.Status),
		ExternalReference: strings.TrimSpace(p.ExternalReference),
		PayerEmail:        strings.TrimSpace(p.PayerEmail),
		TransactionAmount: p.AutoRecurring.TransactionAmount,
		Reason:            strings.TrimSpace(p.Reason),
	}
	if t, err := time.Parse(time.RFC3339, p.NextPaymentDate); err == nil {
		out.NextPaymentDate = &t
	}
	return out
}

// GetPayment fetches a payment from the API. Webhook processing always goes
// through here instead of trusting the notification body.
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/payments/"+strings.TrimSpace(paymentID), nil, "")
	if err != nil {
		return nil, err
	}

	var raw rawPayment
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.ID == 0 {
		return nil, errors.New("payment response missing id")
	}
	return raw.toPayment(), nil
}

// GetPreapproval fetches a subscription from the API.
func (c *MercadoPagoClient) GetPreapproval(ctx context.Context, preapprovalID string) (*Preapproval, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/preapproval/"+strings.TrimSpace(preapprovalID), nil, "")
	if err != nil {
		return nil, err
	}

	var raw rawPreapproval
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, errors.New("preapproval response missing id")
	}
	return raw.toPreapproval(), nil
}

// CreatePayment charges a card token. The idempotency key keeps a retried
// request from double charging.
func (c *MercadoPagoClient) CreatePayment(ctx context.Context, in CreatePaymentRequest) (*Payment, error) {
	if strings.TrimSpace(in.Token) == "" {
		return nil, errors.New("card token is required")
	}
	if in.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}

	installments := in.Installments
	if installments <= 0 {
		installments = 1
	}

	payload := map[string]interface{}{
		"token":              in.Token,
		"issuer_id":          in.IssuerID,
		"payment_method_id":  in.PaymentMethodID,
		"transaction_amount": in.Amount,
		"installments":       installments,
		"description":        in.Description,
		"external_reference": in.ExternalReference,
		"payer": map[string]string{
			"email": in.PayerEmail,
		},
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/payments", payload, uuid.New().String())
	if err != nil {
		return nil, err
	}

	var raw rawPayment
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return raw.toPayment(), nil
}

// CreatePreference creates a hosted checkout for a one-time purchase.
func (c *MercadoPagoClient) CreatePreference(ctx context.Context, in CreatePreferenceRequest) (*CheckoutPreference, error) {
	if in.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{
				"title":       in.Title,
				"quantity":    1,
				"unit_price":  in.Amount,
				"currency_id": "MXN",
			},
		},
		"payer": map[string]string{
			"email": in.PayerEmail,
		},
		"external_reference": in.ExternalReference,
		"back_urls": map[string]string{
			"success": in.SuccessURL,
			"failure": in.FailureURL,
			"pending": in.PendingURL,
		},
		"auto_return": "approved",
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/checkout/preferences", payload, "")
	if err != nil {
		return nil, err
	}

	var out CheckoutPreference
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("preference response missing id")
	}
	return &out, nil
}

// CreatePreapproval starts a monthly subscription billed in MXN.
func (c *MercadoPagoClient) CreatePreapproval(ctx context.Context, in CreatePreapprovalRequest) (*PreapprovalResult, error) {
	if in.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if strings.TrimSpace(in.PayerEmail) == "" {
		return nil, errors.New("payer email is required")
	}

	payload := map[string]interface{}{
		"reason": in.Reason,
		"auto_recurring": map[string]interface{}{
			"frequency":          1,
			"frequency_type":     "months",
			"transaction_amount": in.Amount,
			"currency_id":        "MXN",
		},
		"payer_email":        in.PayerEmail,
		"external_reference": in.ExternalReference,
		"back_url":           in.BackURL,
		"status":             "pending",
	}
	if strings.TrimSpace(in.CardTokenID) != "" {
		payload["card_token_id"] = in.CardTokenID
		payload["status"] = "authorized"
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/preapproval", payload, "")
	if err != nil {
		return nil, err
	}

	var raw rawPreapproval
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, errors.New("preapproval response missing id")
	}
	return &PreapprovalResult{
		Preapproval: *raw.toPreapproval(),
		InitPoint:   strings.TrimSpace(raw.InitPoint),
	}, nil
}

// CancelPreapproval sets a subscription to cancelled at the processor.
func (c *MercadoPagoClient) CancelPreapproval(ctx context.Context, preapprovalID string) error {
	id := strings.TrimSpace(preapprovalID)
	if id == "" {
		return errors.New("preapproval id is required")
	}

	payload := map[string]string{"status": "cancelled"}
	_, err := c.doRequest(ctx, http.MethodPut, "/preapproval/"+id, payload, "")
	return err
}

func (c *MercadoPagoClient) doRequest(ctx context.Context, method, path string, payload interface{}, idempotencyKey string) ([]byte, error) {
	if strings.TrimSpace(c.AccessToken) == "" {
		return nil, errors.New("MP_ACCESS_TOKEN is not configured")
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessorFetch, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrProcessorFetch, resp.StatusCode, string(body))
	}
	return body, nil
}
