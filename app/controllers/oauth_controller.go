package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/manana-app/manana/app/models"
)

// HandleOAuthCallback completes the provider flow and logs the user in.
// Accounts are matched by email; a first-time visitor gets a fresh record
// with a placeholder password, since Google owns the credentials.
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	email := strings.TrimSpace(strings.ToLower(u.Email))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).SendString("OAuth provider did not return an email")
	}

	repos := getRepos()

	appUser, err := repos.User.GetByEmail(email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("db error: %v", err))
		}

		// Placeholder password; not usable for form login
		placeholder := fmt.Sprintf("oauth_%d", time.Now().UnixNano())
		appUser, err = models.CreateUser(firstNonEmpty(u.Name, u.NickName, email), email, placeholder)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create user failed: %v", err))
		}
		if err := repos.User.Create(appUser); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create user failed: %v", err))
		}
	}

	if err := startUserSession(c, appUser); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}

	_ = repos.User.UpdateLastLogin(appUser.ID, time.Now())

	return c.Redirect("/", fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
