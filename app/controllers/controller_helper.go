package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/manana-app/manana/app/repository"
	"github.com/manana-app/manana/internal/pkg/database"
)

// Locals keys kept as exported constants for controllers and middleware
const (
	AUTH_KEY       string = "authenticated"
	USER_ID        string = "user_id"
	USER_PUBLIC_ID string = "user_public_id"
	USER_NAME      string = "username"
	USER_EMAIL     string = "user_email"
	USER_IS_ADMIN  string = "isAdmin"
	FROM_PROTECTED string = "from_protected"
)

func getRepos() *repository.Repositories {
	return repository.GetRepositories(database.GetDB())
}

// apiError writes the JSON error envelope every API handler uses
func apiError(c *fiber.Ctx, status int, code string, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

func fromProtected(c *fiber.Ctx) bool {
	if v, ok := c.Locals(FROM_PROTECTED).(bool); ok {
		return v
	}
	return false
}

func csrfToken(c *fiber.Ctx) string {
	if v, ok := c.Locals("csrf").(string); ok {
		return v
	}
	return ""
}
