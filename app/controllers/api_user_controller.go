package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manana-app/manana/app/models"
	"github.com/manana-app/manana/internal/pkg/devicecache"
	"github.com/manana-app/manana/internal/pkg/entitlements"
	"github.com/manana-app/manana/internal/pkg/jobqueue"
	"github.com/manana-app/manana/internal/pkg/usercontext"
)

var validAuthEvents = map[entitlements.AuthEvent]bool{
	entitlements.EventInitialLoad:      true,
	entitlements.EventSignedIn:         true,
	entitlements.EventSignedOut:        true,
	entitlements.EventPasswordRecovery: true,
	entitlements.EventUserUpdated:      true,
}

// HandleAPISessionState reconciles the caller's entitlement view and returns
// the session snapshot the front-end renders from. It never fails: a slow or
// broken store degrades to the device-local state.
func HandleAPISessionState(c *fiber.Ctx) error {
	event := entitlements.AuthEvent(c.Query("event", string(entitlements.EventInitialLoad)))
	if !validAuthEvents[event] {
		return apiError(c, fiber.StatusBadRequest, "invalid_event", "unknown auth event")
	}

	userCtx := usercontext.GetUserContext(c)
	deviceID := usercontext.GetDeviceID(c)
	device := devicecache.Load(deviceID)

	var ident *entitlements.Identity
	if userCtx.IsLoggedIn {
		ident = &entitlements.Identity{
			PublicID: userCtx.PublicID,
			Email:    userCtx.Email,
			Name:     userCtx.Username,
		}
	}

	reconciler := entitlements.NewReconciler(
		getRepos().User,
		jobqueue.NewRegistrar(jobqueue.GetManager().GetQueue()),
		devicecache.NewMirror(),
	)
	state := reconciler.Reconcile(c.Context(), event, ident, deviceID, device)

	limits := entitlements.DefaultLimits()
	snapshot := entitlements.Snapshot{
		IsPro:            state.IsPro,
		TotalGenerations: state.TotalGenerations,
		HasEmail:         state.Email != "",
	}

	resp := fiber.Map{
		"signed_in":           state.SignedIn,
		"email":               state.Email,
		"is_pro":              state.IsPro,
		"total_generations":   state.TotalGenerations,
		"subscription_status": state.SubscriptionStatus,
		"pending_recovery":    state.PendingRecovery,
		"remaining":           entitlements.Remaining(snapshot, limits),
		"max_free_favorites":  limits.MaxFreeFavorites,
		"decision":            string(entitlements.Evaluate(snapshot, limits)),
	}
	if state.SubscriptionEndDate != nil {
		resp["subscription_end_date"] = state.SubscriptionEndDate
	}

	// The library is loaded separately by the client; only the anonymous
	// favorites ride along so a signed-out device keeps its list visible.
	if !state.SignedIn {
		if favs, err := devicecache.GetFavorites(deviceID); err == nil && len(favs) > 0 {
			resp["favorites"] = favs
		}
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

type registerRequest struct {
	PublicID          string `json:"public_id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Password          string `json:"password"`
	AcceptedTerms     bool   `json:"accepted_terms"`
	AcceptedMarketing bool   `json:"accepted_marketing"`
	TotalGenerations  int    `json:"total_generations"`
}

// HandleAPIRegister creates or updates the backing record for an account.
// The endpoint is an idempotent upsert: calling it again for an existing
// email refreshes acceptance flags instead of failing, which is what the
// async registration path and the SPA both rely on.
func HandleAPIRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "request body could not be parsed")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "email is required")
	}
	if !req.AcceptedTerms {
		return apiError(c, fiber.StatusBadRequest, "terms_required", "Debes aceptar los términos y condiciones.")
	}

	repos := getRepos()

	existing, err := repos.User.GetByEmail(req.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apiError(c, fiber.StatusInternalServerError, "register_failed", "account could not be created")
	}

	if existing != nil && err == nil {
		existing.AcceptedTerms = true
		existing.AcceptedMarketing = req.AcceptedMarketing
		if req.TotalGenerations > existing.TotalGenerations {
			if serr := repos.User.SetGenerations(existing.ID, req.TotalGenerations); serr != nil {
				log.Errorf("[Register] failed to raise counter for %s: %v", existing.PublicID, serr)
			} else {
				existing.TotalGenerations = req.TotalGenerations
			}
		}
		if uerr := repos.User.Update(existing); uerr != nil {
			return apiError(c, fiber.StatusInternalServerError, "register_failed", "account could not be updated")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"public_id": existing.PublicID,
			"created":   false,
		})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		if at := strings.Index(req.Email, "@"); at > 0 {
			name = req.Email[:at]
		}
	}

	password := req.Password
	if password == "" {
		// External-identity accounts get an unusable random password
		password = uuid.New().String()
	}

	user, err := models.CreateUser(name, req.Email, password)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_params", "name, email or password is invalid")
	}
	if req.PublicID != "" {
		user.PublicID = req.PublicID
	}
	user.AcceptedTerms = true
	user.AcceptedMarketing = req.AcceptedMarketing
	user.TotalGenerations = req.TotalGenerations

	if err := repos.User.Create(user); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "register_failed", "account could not be created")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"public_id": user.PublicID,
		"created":   true,
	})
}
