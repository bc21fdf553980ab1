package entitlements

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/manana-app/manana/app/models"
)

type AuthEvent string

const (
	EventInitialLoad      AuthEvent = "initial_load"
	EventSignedIn         AuthEvent = "signed_in"
	EventSignedOut        AuthEvent = "signed_out"
	EventPasswordRecovery AuthEvent = "password_recovery"
	EventUserUpdated      AuthEvent = "user_updated"
)

// DefaultResolveTimeout caps how long a reconcile may wait on the user store
// before falling back to the device-local state.
const DefaultResolveTimeout = 5 * time.Second

// Identity is what the auth layer knows about the signed-in user.
type Identity struct {
	PublicID string
	Email    string
	Name     string
}

// DeviceState is the anonymous entitlement snapshot a device carries between
// visits. It is the source of truth until an account takes over.
type DeviceState struct {
	IsPro            bool
	TotalGenerations int
	Email            string
}

// SessionState is the reconciled entitlement view handed to the rest of the
// request. Reconcile always produces one; there is no error path.
type SessionState struct {
	SignedIn            bool
	Email               string
	IsPro               bool
	TotalGenerations    int
	SubscriptionStatus  string
	SubscriptionEndDate *time.Time
	PendingRecovery     bool
}

// UserStore is the slice of the user repository the reconciler needs.
type UserStore interface {
	GetByPublicID(publicID string) (*models.User, error)
	Update(user *models.User) error
}

// Registrar queues the creation of a backing record for an authenticated
// identity that has none yet.
type Registrar interface {
	EnqueueRegistration(identity Identity, deviceGenerations int) error
}

// DeviceMirror writes the reconciled state back to the device cache.
type DeviceMirror interface {
	Save(deviceID string, st SessionState) error
}

// Reconciler folds auth events, the remote entitlement record and the
// device-local state into a single session view.
type Reconciler struct {
	store     UserStore
	registrar Registrar
	mirror    DeviceMirror
	timeout   time.Duration
	now       func() time.Time
}

func NewReconciler(store UserStore, registrar Registrar, mirror DeviceMirror) *Reconciler {
	return &Reconciler{
		store:     store,
		registrar: registrar,
		mirror:    mirror,
		timeout:   DefaultResolveTimeout,
		now:       time.Now,
	}
}

// Reconcile maps an auth event onto a session state. It never fails: store
// errors and slow lookups degrade to the device-local view instead. The
// generation counter survives every transition, including sign-out.
func (r *Reconciler) Reconcile(ctx context.Context, event AuthEvent, ident *Identity, deviceID string, device DeviceState) SessionState {
	var state SessionState

	switch {
	case event == EventPasswordRecovery:
		// Recovery flow: the user is mid reset, entitlements stay untouched.
		state = SessionState{
			PendingRecovery:    true,
			Email:              device.Email,
			TotalGenerations:   device.TotalGenerations,
			SubscriptionStatus: models.SubscriptionStatusNone,
		}
	case event == EventSignedOut || ident == nil:
		// PRO is account bound and drops with the session. The counter is
		// device bound and does not.
		state = SessionState{
			Email:              device.Email,
			TotalGenerations:   device.TotalGenerations,
			SubscriptionStatus: models.SubscriptionStatusNone,
		}
	default:
		state = r.resolveWithTimeout(ctx, *ident, device)
	}

	if r.mirror != nil && deviceID != "" {
		if err := r.mirror.Save(deviceID, state); err != nil {
			log.Printf("[Entitlements] failed to mirror state for device %s: %v", deviceID, err)
		}
	}

	return state
}

// resolveWithTimeout races the store lookup against the timeout; whichever
// finishes first decides the session. A late lookup result is discarded.
func (r *Reconciler) resolveWithTimeout(ctx context.Context, ident Identity, device DeviceState) SessionState {
	resultCh := make(chan SessionState, 1)

	go func() {
		resultCh <- r.resolve(ident, device)
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case st := <-resultCh:
		return st
	case <-timer.C:
		log.Printf("[Entitlements] store lookup for %s timed out after %v, using device state", ident.PublicID, r.timeout)
	case <-ctx.Done():
	}

	// Degraded cycle: the device counter stands in so usage history is not
	// lost, but paid features need the record and stay off.
	return SessionState{
		SignedIn:           true,
		Email:              ident.Email,
		TotalGenerations:   device.TotalGenerations,
		SubscriptionStatus: models.SubscriptionStatusNone,
	}
}

func (r *Reconciler) resolve(ident Identity, device DeviceState) SessionState {
	user, err := r.store.GetByPublicID(ident.PublicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// First sign-in through an external provider: the record is
			// created asynchronously, the session starts on free defaults.
			if r.registrar != nil {
				if qerr := r.registrar.EnqueueRegistration(ident, device.TotalGenerations); qerr != nil {
					log.Printf("[Entitlements] failed to enqueue registration for %s: %v", ident.PublicID, qerr)
				}
			}
			return SessionState{
				SignedIn:           true,
				Email:              ident.Email,
				TotalGenerations:   device.TotalGenerations,
				SubscriptionStatus: models.SubscriptionStatusNone,
			}
		}

		// Same degraded shape as the timeout path: counter from the device,
		// never PRO.
		log.Printf("[Entitlements] store lookup for %s failed: %v", ident.PublicID, err)
		return SessionState{
			SignedIn:           true,
			Email:              ident.Email,
			TotalGenerations:   device.TotalGenerations,
			SubscriptionStatus: models.SubscriptionStatusNone,
		}
	}

	// Lazy expiry: a cancelled subscription past its paid-through date loses
	// PRO here, on read. The status itself stays cancelled. The same pass
	// clears a stray PRO flag on a record whose status never carries one.
	expired := user.IsPro && user.SubscriptionExpired(r.now())
	inconsistent := user.IsPro &&
		(user.SubscriptionStatus == models.SubscriptionStatusNone ||
			user.SubscriptionStatus == models.SubscriptionStatusPending)
	if expired || inconsistent {
		user.IsPro = false
		if uerr := r.store.Update(user); uerr != nil {
			log.Printf("[Entitlements] failed to persist expiry for user %d: %v", user.ID, uerr)
		}
	}

	// The remote counter is the sole source of truth once a session exists;
	// the device value only carries forward through registration.
	return SessionState{
		SignedIn:            true,
		Email:               user.Email,
		IsPro:               user.IsPro,
		TotalGenerations:    user.TotalGenerations,
		SubscriptionStatus:  user.SubscriptionStatus,
		SubscriptionEndDate: user.SubscriptionEndDate,
	}
}
