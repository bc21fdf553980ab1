package entitlements

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

type fakeStore struct {
	user      *models.User
	getErr    error
	delay     time.Duration
	updated   *models.User
	updateErr error
}

func (f *fakeStore) GetByPublicID(publicID string) (*models.User, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	u := *f.user
	return &u, nil
}

func (f *fakeStore) Update(user *models.User) error {
	f.updated = user
	return f.updateErr
}

type fakeRegistrar struct {
	identities []Identity
	totals     []int
}

func (f *fakeRegistrar) EnqueueRegistration(ident Identity, deviceGenerations int) error {
	f.identities = append(f.identities, ident)
	f.totals = append(f.totals, deviceGenerations)
	return nil
}

type fakeMirror struct {
	deviceID string
	state    SessionState
	saves    int
}

func (f *fakeMirror) Save(deviceID string, st SessionState) error {
	f.deviceID = deviceID
	f.state = st
	f.saves++
	return nil
}

func newTestReconciler(store UserStore, reg Registrar, mirror DeviceMirror) *Reconciler {
	r := NewReconciler(store, reg, mirror)
	r.timeout = 100 * time.Millisecond
	return r
}

func proUser(end *time.Time) *models.User {
	return &models.User{
		ID:                  7,
		PublicID:            "pub-7",
		Email:               "maestra@example.com",
		IsPro:               true,
		TotalGenerations:    12,
		SubscriptionStatus:  models.SubscriptionStatusAuthorized,
		SubscriptionEndDate: end,
	}
}

func TestReconcileSignedInAdoptsRemoteState(t *testing.T) {
	store := &fakeStore{user: proUser(nil)}
	mirror := &fakeMirror{}
	r := newTestReconciler(store, nil, mirror)

	st := r.Reconcile(context.Background(), EventSignedIn,
		&Identity{PublicID: "pub-7", Email: "maestra@example.com"},
		"dev-1", DeviceState{TotalGenerations: 3})

	assert.True(t, st.SignedIn)
	assert.True(t, st.IsPro)
	assert.Equal(t, 12, st.TotalGenerations, "remote counter wins when larger")
	assert.Equal(t, models.SubscriptionStatusAuthorized, st.SubscriptionStatus)
	assert.Equal(t, 1, mirror.saves)
	assert.Equal(t, "dev-1", mirror.deviceID)
	assert.Equal(t, st, mirror.state)
}

func TestReconcileRemoteCounterWinsOverDevice(t *testing.T) {
	u := proUser(nil)
	u.IsPro = false
	u.SubscriptionStatus = models.SubscriptionStatusNone
	u.TotalGenerations = 4
	store := &fakeStore{user: u}
	mirror := &fakeMirror{}
	r := newTestReconciler(store, nil, mirror)

	st := r.Reconcile(context.Background(), EventSignedIn,
		&Identity{PublicID: "pub-7"}, "dev-1", DeviceState{TotalGenerations: 9})

	assert.Equal(t, 4, st.TotalGenerations,
		"the record is sole source of truth once a session exists, even when smaller")
	assert.Nil(t, store.updated, "no write-back for a counter divergence")
	assert.Equal(t, 4, mirror.state.TotalGenerations, "remote value is mirrored to the device")
}

func TestReconcileClearsProOnPendingStatus(t *testing.T) {
	u := proUser(nil)
	u.SubscriptionStatus = models.SubscriptionStatusPending
	store := &fakeStore{user: u}
	r := newTestReconciler(store, nil, nil)

	st := r.Reconcile(context.Background(), EventInitialLoad,
		&Identity{PublicID: "pub-7"}, "", DeviceState{})

	assert.False(t, st.IsPro, "a pending subscription never carries pro")
	require.NotNil(t, store.updated, "the corrected flag is written back")
	assert.False(t, store.updated.IsPro)
	assert.Equal(t, models.SubscriptionStatusPending, st.SubscriptionStatus)
}

func TestReconcileLazyExpiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		now     time.Time
		wantPro bool
	}{
		{"one second before end date", base.Add(-time.Second), true},
		{"exactly at end date", base, true},
		{"one second after end date", base.Add(time.Second), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			end := base
			u := proUser(&end)
			u.SubscriptionStatus = models.SubscriptionStatusCancelled
			store := &fakeStore{user: u}
			r := newTestReconciler(store, nil, nil)
			r.now = func() time.Time { return tc.now }

			st := r.Reconcile(context.Background(), EventInitialLoad,
				&Identity{PublicID: "pub-7"}, "", DeviceState{})

			assert.Equal(t, tc.wantPro, st.IsPro)
			assert.Equal(t, models.SubscriptionStatusCancelled, st.SubscriptionStatus,
				"status stays cancelled either way")

			if !tc.wantPro {
				require.NotNil(t, store.updated, "expiry must be written back")
				assert.False(t, store.updated.IsPro)
			} else {
				assert.Nil(t, store.updated)
			}
		})
	}
}

func TestReconcileExpiryIgnoredForAuthorized(t *testing.T) {
	end := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	u := proUser(&end)
	store := &fakeStore{user: u}
	r := newTestReconciler(store, nil, nil)

	st := r.Reconcile(context.Background(), EventSignedIn,
		&Identity{PublicID: "pub-7"}, "", DeviceState{})

	assert.True(t, st.IsPro, "an authorized subscription never expires lazily")
	assert.Nil(t, store.updated)
}

func TestReconcileRecordMissEnqueuesRegistration(t *testing.T) {
	store := &fakeStore{getErr: gorm.ErrRecordNotFound}
	reg := &fakeRegistrar{}
	r := newTestReconciler(store, reg, nil)

	st := r.Reconcile(context.Background(), EventSignedIn,
		&Identity{PublicID: "pub-new", Email: "nueva@example.com"},
		"", DeviceState{TotalGenerations: 2})

	assert.True(t, st.SignedIn)
	assert.False(t, st.IsPro)
	assert.Equal(t, 2, st.TotalGenerations, "device counter carries over")
	require.Len(t, reg.identities, 1)
	assert.Equal(t, "pub-new", reg.identities[0].PublicID)
	assert.Equal(t, []int{2}, reg.totals)
}

func TestReconcileStoreErrorFailsClosedOnPro(t *testing.T) {
	store := &fakeStore{getErr: errors.New("connection refused")}
	r := newTestReconciler(store, nil, nil)

	st := r.Reconcile(context.Background(), EventSignedIn,
		&Identity{PublicID: "pub-7", Email: "maestra@example.com"},
		"", DeviceState{IsPro: true, TotalGenerations: 5})

	assert.True(t, st.SignedIn)
	assert.False(t, st.IsPro,
		"a stale device PRO flag must not grant paid features while the store is down")
	assert.Equal(t, 5, st.TotalGenerations, "usage history still carries over")
}

func TestReconcileSlowStoreTimesOut(t *testing.T) {
	store := &fakeStore{user: proUser(nil), delay: time.Second}
	r := newTestReconciler(store, nil, nil)

	start := time.Now()
	st := r.Reconcile(context.Background(), EventSignedIn,
		&Identity{PublicID: "pub-7", Email: "maestra@example.com"},
		"", DeviceState{IsPro: true, TotalGenerations: 3})

	assert.Less(t, time.Since(start), 500*time.Millisecond, "timeout wins the race")
	assert.True(t, st.SignedIn)
	assert.False(t, st.IsPro, "a degraded cycle never grants pro, not even from the device cache")
	assert.Equal(t, 3, st.TotalGenerations)
}

func TestReconcileSignedOutKeepsCounter(t *testing.T) {
	r := newTestReconciler(&fakeStore{}, nil, nil)

	st := r.Reconcile(context.Background(), EventSignedOut, nil,
		"", DeviceState{IsPro: true, TotalGenerations: 8, Email: "maestra@example.com"})

	assert.False(t, st.SignedIn)
	assert.False(t, st.IsPro, "pro drops with the session")
	assert.Equal(t, 8, st.TotalGenerations, "the counter survives sign-out")
}

func TestReconcilePasswordRecovery(t *testing.T) {
	store := &fakeStore{getErr: errors.New("must not be called")}
	r := newTestReconciler(store, nil, nil)

	st := r.Reconcile(context.Background(), EventPasswordRecovery,
		&Identity{PublicID: "pub-7"}, "", DeviceState{TotalGenerations: 4})

	assert.True(t, st.PendingRecovery)
	assert.False(t, st.SignedIn)
	assert.Equal(t, 4, st.TotalGenerations)
}

func TestReconcileNilIdentityTreatedAsAnonymous(t *testing.T) {
	r := newTestReconciler(&fakeStore{}, nil, nil)

	st := r.Reconcile(context.Background(), EventInitialLoad, nil,
		"", DeviceState{TotalGenerations: 1, Email: "vieja@example.com"})

	assert.False(t, st.SignedIn)
	assert.Equal(t, 1, st.TotalGenerations)
	assert.Equal(t, "vieja@example.com", st.Email)
}
