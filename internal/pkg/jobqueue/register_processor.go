package jobqueue

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/manana-app/manana/app/models"
	"github.com/manana-app/manana/app/repository"
	"github.com/manana-app/manana/internal/pkg/database"
)

// EnqueueRegisterUserJob enqueues an asynchronous registration for an identity
// that authenticated before a backing record existed
func (q *Queue) EnqueueRegisterUserJob(publicID, email, name string, totalGenerations int) (*Job, error) {
	payload := RegisterUserJobPayload{
		PublicID:         publicID,
		Email:            email,
		Name:             name,
		TotalGenerations: totalGenerations,
	}
	return q.EnqueueJob(JobTypeRegisterUser, payload.ToMap())
}

// processRegisterUserJob creates the backing record for a signed-in identity.
// Re-delivery is harmless: if the record already exists the job is a no-op.
func (q *Queue) processRegisterUserJob(ctx context.Context, job *Job) error {
	payload, perr := RegisterUserJobPayloadFromMap(job.Payload)
	if perr != nil {
		return fmt.Errorf("failed to parse register user payload: %w", perr)
	}

	if payload.PublicID == "" {
		return fmt.Errorf("register user payload missing public_id")
	}

	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	repos := repository.GetRepositories(db)

	// Already registered (earlier delivery or a parallel sign-up)
	if existing, err := repos.User.GetByPublicID(payload.PublicID); err == nil && existing != nil {
		log.Infof("[RegisterUserJob] Record for %s already exists (ID: %d), skipping", payload.PublicID, existing.ID)
		// Still adopt a larger device counter that rode along with the job
		if payload.TotalGenerations > existing.TotalGenerations {
			if serr := repos.User.SetGenerations(existing.ID, payload.TotalGenerations); serr != nil {
				log.Errorf("[RegisterUserJob] Failed to raise counter for %s: %v", payload.PublicID, serr)
			}
		}
		return nil
	}

	name := payload.Name
	if name == "" {
		name = nameFromEmail(payload.Email)
	}

	// The identity provider owns the credentials; the local password is an
	// unusable random value
	randomPassword, err := randomToken(24)
	if err != nil {
		return fmt.Errorf("failed to generate placeholder password: %w", err)
	}

	hashed, err := models.HashPassword(randomPassword)
	if err != nil {
		return fmt.Errorf("failed to hash placeholder password: %w", err)
	}

	user := &models.User{
		PublicID:           payload.PublicID,
		Name:               name,
		Email:              payload.Email,
		Password:           hashed,
		Role:               models.ROLE_USER,
		Status:             models.STATUS_ACTIVE,
		IsPro:              false,
		TotalGenerations:   payload.TotalGenerations,
		SubscriptionStatus: models.SubscriptionStatusNone,
	}

	if err := repos.User.Create(user); err != nil {
		return fmt.Errorf("failed to create user record for %s: %w", payload.PublicID, err)
	}

	log.Infof("[RegisterUserJob] Registered %s (ID: %d, generations: %d)", payload.PublicID, user.ID, user.TotalGenerations)
	return nil
}

// nameFromEmail derives a display name from the local part of an address
func nameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	if email != "" {
		return email
	}
	return "Docente"
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
