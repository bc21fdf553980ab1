package billing

import (
	"errors"
	"time"
)

// Webhook resource types MercadoPago sends in the "type" field.
const (
	ResourcePayment     = "payment"
	ResourcePreapproval = "subscription_preapproval"
)

// Payment statuses as returned by the MercadoPago payments API.
const (
	PaymentStatusApproved    = "approved"
	PaymentStatusPending     = "pending"
	PaymentStatusInProcess   = "in_process"
	PaymentStatusRejected    = "rejected"
	PaymentStatusCancelled   = "cancelled"
	PaymentStatusRefunded    = "refunded"
	PaymentStatusChargedBack = "charged_back"
)

// Preapproval statuses as returned by the MercadoPago preapproval API.
const (
	PreapprovalStatusAuthorized = "authorized"
	PreapprovalStatusPending    = "pending"
	PreapprovalStatusPaused     = "paused"
	PreapprovalStatusCancelled  = "cancelled"
)

var (
	ErrInvalidSignature  = errors.New("webhook signature verification failed")
	ErrMalformedPayload  = errors.New("webhook payload is malformed")
	ErrUnknownUser       = errors.New("external reference does not match a user")
	ErrProcessorFetch    = errors.New("payment processor fetch failed")
	ErrSubscriptionState = errors.New("subscription is not in a cancellable state")
)

// Payment is the slice of a MercadoPago payment the entitlement sync needs.
type Payment struct {
	ID                int64
	Status            string
	StatusDetail      string
	ExternalReference string
	TransactionAmount float64
	CurrencyID        string
	DateApproved      *time.Time
	PayerEmail        string
}

// Preapproval is the slice of a MercadoPago preapproval (subscription).
type Preapproval struct {
	ID                string
	Status            string
	ExternalReference string
	PayerEmail        string
	NextPaymentDate   *time.Time
	TransactionAmount float64
	Reason            string
}

// WebhookNotification is the body MercadoPago posts. Only the identifiers
// are read from it; everything else is re-fetched from the API.
type WebhookNotification struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// WebhookEventInput carries a received webhook into idempotent storage.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
