package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/manana-app/manana/app/models"
)

type fakeUsers struct {
	byPublicID map[string]*models.User
	bySubID    map[string]*models.User
	updated    []*models.User
	updateErr  error
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{
		byPublicID: map[string]*models.User{},
		bySubID:    map[string]*models.User{},
	}
	for _, u := range users {
		f.byPublicID[u.PublicID] = u
		if u.SubscriptionID != "" {
			f.bySubID[u.SubscriptionID] = u
		}
	}
	return f
}

func (f *fakeUsers) GetByPublicID(publicID string) (*models.User, error) {
	if u, ok := f.byPublicID[publicID]; ok {
		c := *u
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) GetBySubscriptionID(id string) (*models.User, error) {
	if u, ok := f.bySubID[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) Update(user *models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, user)
	f.byPublicID[user.PublicID] = user
	if user.SubscriptionID != "" {
		f.bySubID[user.SubscriptionID] = user
	}
	return nil
}

type fakeEvents struct {
	seen      map[string]*models.WebhookEvent
	nextID    uint
	processed map[uint]string
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{seen: map[string]*models.WebhookEvent{}, processed: map[uint]string{}}
}

func (f *fakeEvents) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := f.seen[key]; ok {
		return false, stored, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.seen[key] = event
	return true, event, nil
}

func (f *fakeEvents) MarkWebhookProcessed(id uint, processingError string) error {
	f.processed[id] = processingError
	return nil
}

type fakeProvider struct {
	payment     *Payment
	preapproval *Preapproval
	fetchErr    error
	cancelled   []string
	cancelErr   error
	fetches     int
}

func (f *fakeProvider) GetPayment(ctx context.Context, id string) (*Payment, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.payment, nil
}

func (f *fakeProvider) GetPreapproval(ctx context.Context, id string) (*Preapproval, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.preapproval, nil
}

func (f *fakeProvider) CancelPreapproval(ctx context.Context, id string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func freeUser() *models.User {
	return &models.User{
		ID:                 1,
		PublicID:           "pub-1",
		Email:              "maestra@example.com",
		SubscriptionStatus: models.SubscriptionStatusNone,
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
}

func newTestService(users UserStore, events Repository, provider PaymentProvider) *Service {
	s := NewService(users, events, provider)
	s.now = fixedNow
	return s
}

func TestApplyPaymentEventApprovedGrantsPro(t *testing.T) {
	users := newFakeUsers(freeUser())
	provider := &fakeProvider{payment: &Payment{
		ID:                99,
		Status:            PaymentStatusApproved,
		ExternalReference: "pub-1|anual",
		TransactionAmount: 490,
	}}
	s := newTestService(users, newFakeEvents(), provider)

	err := s.ApplyPaymentEvent(context.Background(), "99")
	require.NoError(t, err)
	require.Len(t, users.updated, 1)

	u := users.updated[0]
	assert.True(t, u.IsPro)
	assert.Equal(t, models.SubscriptionStatusAuthorized, u.SubscriptionStatus)
	assert.Equal(t, "anual", u.SubscriptionPlan)
	assert.Equal(t, 490.0, u.SubscriptionPrice)
	require.NotNil(t, u.SubscriptionEndDate)
	assert.Equal(t, fixedNow().AddDate(0, 0, 365), *u.SubscriptionEndDate)
}

func TestApplyPaymentEventMonthlyGrantsThirtyDays(t *testing.T) {
	users := newFakeUsers(freeUser())
	provider := &fakeProvider{payment: &Payment{
		Status:            PaymentStatusApproved,
		ExternalReference: "pub-1|early-bird",
		TransactionAmount: 19,
	}}
	s := newTestService(users, newFakeEvents(), provider)

	require.NoError(t, s.ApplyPaymentEvent(context.Background(), "1"))
	u := users.updated[0]
	assert.Equal(t, fixedNow().AddDate(0, 0, 30), *u.SubscriptionEndDate)
}

func TestApplyPaymentEventNonApprovedIsIgnored(t *testing.T) {
	for _, status := range []string{PaymentStatusRejected, PaymentStatusPending, PaymentStatusRefunded} {
		users := newFakeUsers(freeUser())
		provider := &fakeProvider{payment: &Payment{
			Status:            status,
			ExternalReference: "pub-1",
		}}
		s := newTestService(users, newFakeEvents(), provider)

		require.NoError(t, s.ApplyPaymentEvent(context.Background(), "1"))
		assert.Empty(t, users.updated, "status %s must not change the user", status)
	}
}

func TestApplyPaymentEventUnknownUser(t *testing.T) {
	users := newFakeUsers()
	provider := &fakeProvider{payment: &Payment{
		Status:            PaymentStatusApproved,
		ExternalReference: "pub-missing|regular",
	}}
	s := newTestService(users, newFakeEvents(), provider)

	err := s.ApplyPaymentEvent(context.Background(), "1")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestApplyPaymentEventEmptyReference(t *testing.T) {
	provider := &fakeProvider{payment: &Payment{Status: PaymentStatusApproved}}
	s := newTestService(newFakeUsers(), newFakeEvents(), provider)

	err := s.ApplyPaymentEvent(context.Background(), "1")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestApplyPreapprovalEventAuthorized(t *testing.T) {
	users := newFakeUsers(freeUser())
	next := fixedNow().AddDate(0, 1, 0)
	provider := &fakeProvider{preapproval: &Preapproval{
		ID:                "pre-55",
		Status:            PreapprovalStatusAuthorized,
		ExternalReference: "pub-1|regular",
		TransactionAmount: 49,
		NextPaymentDate:   &next,
	}}
	s := newTestService(users, newFakeEvents(), provider)

	require.NoError(t, s.ApplyPreapprovalEvent(context.Background(), "pre-55"))
	u := users.updated[0]
	assert.True(t, u.IsPro)
	assert.Equal(t, models.SubscriptionStatusAuthorized, u.SubscriptionStatus)
	assert.Equal(t, "pre-55", u.SubscriptionID)
	assert.Equal(t, next, *u.SubscriptionEndDate)
}

func TestApplyPreapprovalEventPending(t *testing.T) {
	users := newFakeUsers(freeUser())
	provider := &fakeProvider{preapproval: &Preapproval{
		ID:                "pre-55",
		Status:            PreapprovalStatusPending,
		ExternalReference: "pub-1|regular",
	}}
	s := newTestService(users, newFakeEvents(), provider)

	require.NoError(t, s.ApplyPreapprovalEvent(context.Background(), "pre-55"))
	u := users.updated[0]
	assert.False(t, u.IsPro, "pending never grants pro")
	assert.Equal(t, models.SubscriptionStatusPending, u.SubscriptionStatus)
	assert.Equal(t, "pre-55", u.SubscriptionID)
}

func TestApplyPreapprovalEventPendingRevokesPro(t *testing.T) {
	// An authorized subscription dropping back to pending (failed renewal
	// charge) loses PRO with it; pending never carries an entitlement.
	u := freeUser()
	u.IsPro = true
	u.SubscriptionStatus = models.SubscriptionStatusAuthorized
	u.SubscriptionID = "pre-55"
	users := newFakeUsers(u)
	provider := &fakeProvider{preapproval: &Preapproval{
		ID:                "pre-55",
		Status:            PreapprovalStatusPending,
		ExternalReference: "pub-1|regular",
	}}
	s := newTestService(users, newFakeEvents(), provider)

	require.NoError(t, s.ApplyPreapprovalEvent(context.Background(), "pre-55"))
	got := users.updated[0]
	assert.False(t, got.IsPro, "is_pro must drop when the status drops to pending")
	assert.Equal(t, models.SubscriptionStatusPending, got.SubscriptionStatus)
}

func TestApplyPreapprovalEventCancelledKeepsProUntilEndDate(t *testing.T) {
	end := fixedNow().AddDate(0, 0, 12)
	u := freeUser()
	u.IsPro = true
	u.SubscriptionStatus = models.SubscriptionStatusAuthorized
	u.SubscriptionID = "pre-55"
	u.SubscriptionEndDate = &end
	users := newFakeUsers(u)
	provider := &fakeProvider{preapproval: &Preapproval{
		ID:                "pre-55",
		Status:            PreapprovalStatusCancelled,
		ExternalReference: "pub-1|regular",
	}}
	s := newTestService(users, newFakeEvents(), provider)

	require.NoError(t, s.ApplyPreapprovalEvent(context.Background(), "pre-55"))
	got := users.updated[0]
	assert.True(t, got.IsPro, "pro survives until the paid-through date")
	assert.Equal(t, models.SubscriptionStatusCancelled, got.SubscriptionStatus)
	assert.Equal(t, end, *got.SubscriptionEndDate, "end date is not rewritten")
}

func TestApplyPreapprovalEventFallsBackToExternalReference(t *testing.T) {
	// The subscription id is not on record yet when the first authorized
	// event arrives; the external reference resolves the user instead.
	users := newFakeUsers(freeUser())
	provider := &fakeProvider{preapproval: &Preapproval{
		ID:                "pre-new",
		Status:            PreapprovalStatusAuthorized,
		ExternalReference: "pub-1|regular",
		TransactionAmount: 49,
	}}
	s := newTestService(users, newFakeEvents(), provider)

	require.NoError(t, s.ApplyPreapprovalEvent(context.Background(), "pre-new"))
	assert.Equal(t, "pre-new", users.updated[0].SubscriptionID)
}

func TestHandleNotificationReplayIsIdempotent(t *testing.T) {
	users := newFakeUsers(freeUser())
	events := newFakeEvents()
	provider := &fakeProvider{payment: &Payment{
		Status:            PaymentStatusApproved,
		ExternalReference: "pub-1|regular",
		TransactionAmount: 49,
	}}
	s := newTestService(users, events, provider)

	n := WebhookNotification{ID: 9001, Type: ResourcePayment}
	n.Data.ID = "777"

	require.NoError(t, s.HandleNotification(context.Background(), n, `{"id":9001}`, true))
	require.NoError(t, s.HandleNotification(context.Background(), n, `{"id":9001}`, true))
	require.NoError(t, s.HandleNotification(context.Background(), n, `{"id":9001}`, true))

	assert.Equal(t, 1, provider.fetches, "replays never hit the processor again")
	assert.Len(t, users.updated, 1, "the entitlement is written exactly once")
}

func TestHandleNotificationPreapprovalLifecycleNotDeduped(t *testing.T) {
	// The same preapproval (same data.id) sends distinct notifications as it
	// moves through its lifecycle; each must be processed, only true replays
	// (same envelope id) are dropped.
	users := newFakeUsers(freeUser())
	events := newFakeEvents()
	provider := &fakeProvider{preapproval: &Preapproval{
		ID:                "pre-1",
		Status:            PreapprovalStatusPending,
		ExternalReference: "pub-1|regular",
		TransactionAmount: 49,
	}}
	s := newTestService(users, events, provider)

	pending := WebhookNotification{ID: 1001, Type: ResourcePreapproval}
	pending.Data.ID = "pre-1"
	require.NoError(t, s.HandleNotification(context.Background(), pending, `{"id":1001}`, true))

	provider.preapproval.Status = PreapprovalStatusAuthorized
	authorized := WebhookNotification{ID: 1002, Type: ResourcePreapproval}
	authorized.Data.ID = "pre-1"
	require.NoError(t, s.HandleNotification(context.Background(), authorized, `{"id":1002}`, true))

	assert.Equal(t, 2, provider.fetches, "the authorized event must be re-fetched, not dropped")
	u, err := users.GetByPublicID("pub-1")
	require.NoError(t, err)
	assert.True(t, u.IsPro, "paying user must become PRO after the authorized event")
	assert.Equal(t, models.SubscriptionStatusAuthorized, u.SubscriptionStatus)
}

func TestHandleNotificationWithoutEnvelopeIDDedupsOnPayload(t *testing.T) {
	users := newFakeUsers(freeUser())
	events := newFakeEvents()
	provider := &fakeProvider{payment: &Payment{
		Status:            PaymentStatusApproved,
		ExternalReference: "pub-1|regular",
	}}
	s := newTestService(users, events, provider)

	n := WebhookNotification{Type: ResourcePayment}
	n.Data.ID = "777"

	require.NoError(t, s.HandleNotification(context.Background(), n, `{"data":{"id":"777"}}`, true))
	require.NoError(t, s.HandleNotification(context.Background(), n, `{"data":{"id":"777"}}`, true))

	assert.Equal(t, 1, provider.fetches, "identical payloads without an envelope id are one event")
}

func TestHandleNotificationDedupKeySeparatesResourceTypes(t *testing.T) {
	users := newFakeUsers(freeUser())
	events := newFakeEvents()
	provider := &fakeProvider{
		payment: &Payment{Status: PaymentStatusPending, ExternalReference: "pub-1"},
		preapproval: &Preapproval{
			ID: "42", Status: PreapprovalStatusPending, ExternalReference: "pub-1",
		},
	}
	s := newTestService(users, events, provider)

	pay := WebhookNotification{ID: 42, Type: ResourcePayment}
	pay.Data.ID = "42"
	pre := WebhookNotification{ID: 42, Type: ResourcePreapproval}
	pre.Data.ID = "42"

	require.NoError(t, s.HandleNotification(context.Background(), pay, "{}", true))
	require.NoError(t, s.HandleNotification(context.Background(), pre, "{}", true))

	assert.Equal(t, 2, provider.fetches, "same numeric id in different namespaces is two events")
}

func TestHandleNotificationFetchFailureSurfaces(t *testing.T) {
	events := newFakeEvents()
	provider := &fakeProvider{fetchErr: ErrProcessorFetch}
	s := newTestService(newFakeUsers(), events, provider)

	n := WebhookNotification{Type: ResourcePayment}
	n.Data.ID = "1"

	err := s.HandleNotification(context.Background(), n, "{}", true)
	assert.ErrorIs(t, err, ErrProcessorFetch)

	// The failure is recorded on the stored event.
	assert.Equal(t, ErrProcessorFetch.Error(), events.processed[1])
}

func TestHandleNotificationUnknownTypeAcknowledged(t *testing.T) {
	events := newFakeEvents()
	s := newTestService(newFakeUsers(), events, &fakeProvider{})

	n := WebhookNotification{Type: "plan"}
	n.Data.ID = "9"

	assert.NoError(t, s.HandleNotification(context.Background(), n, "{}", true))
}

func TestCancelSubscription(t *testing.T) {
	end := fixedNow().AddDate(0, 0, 20)
	u := freeUser()
	u.IsPro = true
	u.SubscriptionStatus = models.SubscriptionStatusAuthorized
	u.SubscriptionID = "pre-9"
	u.SubscriptionEndDate = &end
	users := newFakeUsers(u)
	provider := &fakeProvider{}
	s := newTestService(users, newFakeEvents(), provider)

	require.NoError(t, s.CancelSubscription(context.Background(), u))

	assert.Equal(t, []string{"pre-9"}, provider.cancelled)
	assert.Equal(t, models.SubscriptionStatusCancelled, u.SubscriptionStatus)
	assert.True(t, u.IsPro, "cancellation keeps pro until the end date")
	assert.Equal(t, end, *u.SubscriptionEndDate)
}

func TestCancelSubscriptionFillsMissingEndDate(t *testing.T) {
	start := fixedNow().AddDate(0, 0, -10)
	u := freeUser()
	u.SubscriptionStatus = models.SubscriptionStatusAuthorized
	u.SubscriptionID = "pre-9"
	u.SubscriptionPlan = "regular"
	u.SubscriptionDate = &start
	s := newTestService(newFakeUsers(u), newFakeEvents(), &fakeProvider{})

	require.NoError(t, s.CancelSubscription(context.Background(), u))
	require.NotNil(t, u.SubscriptionEndDate)
	assert.Equal(t, start.AddDate(0, 0, 30), *u.SubscriptionEndDate)
}

func TestCancelSubscriptionEndDateAdvancesPastNow(t *testing.T) {
	// A subscriber several periods in cancels: the paid-through date must
	// land in the current period's future end, not one period after the
	// original start (which would already be in the past).
	start := fixedNow().AddDate(0, 0, -100)
	u := freeUser()
	u.IsPro = true
	u.SubscriptionStatus = models.SubscriptionStatusAuthorized
	u.SubscriptionID = "pre-9"
	u.SubscriptionPlan = "regular"
	u.SubscriptionDate = &start
	s := newTestService(newFakeUsers(u), newFakeEvents(), &fakeProvider{})

	require.NoError(t, s.CancelSubscription(context.Background(), u))
	require.NotNil(t, u.SubscriptionEndDate)
	assert.Equal(t, start.AddDate(0, 0, 120), *u.SubscriptionEndDate,
		"anchor advances in whole periods until after now")
	assert.True(t, u.SubscriptionEndDate.After(fixedNow()))
}

func TestCancelSubscriptionInvalidState(t *testing.T) {
	u := freeUser()
	s := newTestService(newFakeUsers(u), newFakeEvents(), &fakeProvider{})

	assert.ErrorIs(t, s.CancelSubscription(context.Background(), u), ErrSubscriptionState)

	u.SubscriptionID = "pre-9"
	u.SubscriptionStatus = models.SubscriptionStatusCancelled
	assert.ErrorIs(t, s.CancelSubscription(context.Background(), u), ErrSubscriptionState)
}

func TestCancelSubscriptionProcessorFailureLeavesStateAlone(t *testing.T) {
	u := freeUser()
	u.SubscriptionStatus = models.SubscriptionStatusAuthorized
	u.SubscriptionID = "pre-9"
	provider := &fakeProvider{cancelErr: errors.New("processor down")}
	s := newTestService(newFakeUsers(u), newFakeEvents(), provider)

	err := s.CancelSubscription(context.Background(), u)
	assert.Error(t, err)
	assert.Equal(t, models.SubscriptionStatusAuthorized, u.SubscriptionStatus,
		"local state only changes after the processor confirmed")
}
