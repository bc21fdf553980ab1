package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/manana-app/manana/app/models"
)

// PaymentProvider is the slice of the MercadoPago client the service needs.
type PaymentProvider interface {
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	GetPreapproval(ctx context.Context, preapprovalID string) (*Preapproval, error)
	CancelPreapproval(ctx context.Context, preapprovalID string) error
}

// UserStore is the slice of the user repository the service needs.
type UserStore interface {
	GetByPublicID(publicID string) (*models.User, error)
	GetBySubscriptionID(subscriptionID string) (*models.User, error)
	Update(user *models.User) error
}

// Service syncs entitlement state from payment processor events.
type Service struct {
	users    UserStore
	events   Repository
	provider PaymentProvider
	now      func() time.Time
}

func NewService(users UserStore, events Repository, provider PaymentProvider) *Service {
	return &Service{
		users:    users,
		events:   events,
		provider: provider,
		now:      time.Now,
	}
}

// RecordWebhookEvent persists webhook payloads idempotently. Events without
// a processor id are keyed by a payload hash instead.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.events.CreateWebhookEventIfNotExists(event)
}

// HandleNotification runs a verified webhook end to end: dedup, re-fetch
// from the processor, entitlement update, processed mark. A replayed event
// returns nil without touching the user again.
func (s *Service) HandleNotification(ctx context.Context, n WebhookNotification, payloadJSON string, signatureValid bool) error {
	// Dedup on the notification envelope id, never on data.id: a preapproval
	// keeps the same data.id across its whole lifecycle, and keying on it
	// would drop the pending→authorized and authorized→cancelled events as
	// replays. Notifications without an envelope id fall back to the payload
	// hash in RecordWebhookEvent.
	eventID := ""
	if n.ID != 0 {
		eventID = fmt.Sprintf("%s:%d", n.Type, n.ID)
	}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.WebhookProviderMercadoPago,
		ProviderEventID: eventID,
		EventType:       n.Type,
		PayloadJSON:     payloadJSON,
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	var applyErr error
	switch n.Type {
	case ResourcePayment:
		applyErr = s.ApplyPaymentEvent(ctx, n.Data.ID)
	case ResourcePreapproval:
		applyErr = s.ApplyPreapprovalEvent(ctx, n.Data.ID)
	default:
		// Unknown resource types are stored and acknowledged.
	}

	if stored != nil {
		errMsg := ""
		if applyErr != nil {
			errMsg = applyErr.Error()
		}
		if merr := s.events.MarkWebhookProcessed(stored.ID, errMsg); merr != nil && applyErr == nil {
			applyErr = merr
		}
	}

	return applyErr
}

// ApplyPaymentEvent re-fetches a payment and grants PRO when it is approved.
// A monthly plan buys 30 days, the yearly plan 365, counted from approval.
func (s *Service) ApplyPaymentEvent(ctx context.Context, paymentID string) error {
	payment, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	if payment.Status != PaymentStatusApproved {
		// Rejected, pending and refunded payments change nothing here.
		// Refund handling is manual for now.
		return nil
	}

	user, err := s.userForReference(payment.ExternalReference)
	if err != nil {
		return err
	}

	_, planID := ParseExternalReference(payment.ExternalReference)
	plan := GetPlan(planID)

	now := s.now()
	end := now.AddDate(0, 0, plan.DurationDays)

	user.IsPro = true
	user.SubscriptionStatus = models.SubscriptionStatusAuthorized
	user.SubscriptionPlan = plan.ID
	user.SubscriptionPrice = payment.TransactionAmount
	user.SubscriptionDate = &now
	user.SubscriptionEndDate = &end

	return s.users.Update(user)
}

// ApplyPreapprovalEvent re-fetches a subscription and maps its status onto
// the entitlement record. Cancellation keeps PRO until the paid-through
// date; the lazy expiry check at reconciliation flips it off later.
func (s *Service) ApplyPreapprovalEvent(ctx context.Context, preapprovalID string) error {
	pre, err := s.provider.GetPreapproval(ctx, preapprovalID)
	if err != nil {
		return err
	}

	user, err := s.users.GetBySubscriptionID(pre.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		user, err = s.userForReference(pre.ExternalReference)
		if err != nil {
			return err
		}
	}

	now := s.now()

	switch pre.Status {
	case PreapprovalStatusAuthorized:
		_, planID := ParseExternalReference(pre.ExternalReference)
		plan := GetPlan(planID)

		user.IsPro = true
		user.SubscriptionStatus = models.SubscriptionStatusAuthorized
		user.SubscriptionID = pre.ID
		user.SubscriptionPlan = plan.ID
		user.SubscriptionPrice = pre.TransactionAmount
		user.SubscriptionDate = &now
		if pre.NextPaymentDate != nil {
			user.SubscriptionEndDate = pre.NextPaymentDate
		} else {
			end := now.AddDate(0, 0, plan.DurationDays)
			user.SubscriptionEndDate = &end
		}
	case PreapprovalStatusPending:
		// A preapproval that is not authorized carries no entitlement, even
		// when it was authorized before and dropped back.
		user.IsPro = false
		user.SubscriptionStatus = models.SubscriptionStatusPending
		user.SubscriptionID = pre.ID
	case PreapprovalStatusCancelled, PreapprovalStatusPaused:
		user.SubscriptionStatus = models.SubscriptionStatusCancelled
		if user.SubscriptionEndDate == nil && pre.NextPaymentDate != nil {
			user.SubscriptionEndDate = pre.NextPaymentDate
		}
	default:
		return fmt.Errorf("unknown preapproval status %q", pre.Status)
	}

	return s.users.Update(user)
}

// CancelSubscription cancels at the processor first, then marks the local
// record cancelled with PRO intact until the paid-through date.
func (s *Service) CancelSubscription(ctx context.Context, user *models.User) error {
	if user.SubscriptionID == "" {
		return ErrSubscriptionState
	}
	switch user.SubscriptionStatus {
	case models.SubscriptionStatusAuthorized, models.SubscriptionStatusPending:
	default:
		return ErrSubscriptionState
	}

	if err := s.provider.CancelPreapproval(ctx, user.SubscriptionID); err != nil {
		return err
	}

	user.SubscriptionStatus = models.SubscriptionStatusCancelled
	if user.SubscriptionEndDate == nil {
		// No paid-through date on record: advance from the subscription
		// anchor in whole plan periods until the date lands in the future,
		// so a long-running subscriber keeps the period already paid for.
		plan := GetPlan(user.SubscriptionPlan)
		now := s.now()
		start := now
		if user.SubscriptionDate != nil {
			start = *user.SubscriptionDate
		}
		end := start.AddDate(0, 0, plan.DurationDays)
		for !end.After(now) {
			end = end.AddDate(0, 0, plan.DurationDays)
		}
		user.SubscriptionEndDate = &end
	}

	return s.users.Update(user)
}

func (s *Service) userForReference(ref string) (*models.User, error) {
	publicID, _ := ParseExternalReference(ref)
	if publicID == "" {
		return nil, ErrMalformedPayload
	}

	user, err := s.users.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	return user, nil
}
