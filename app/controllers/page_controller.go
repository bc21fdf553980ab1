package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/manana-app/manana/app/models"
	"github.com/manana-app/manana/internal/pkg/database"
)

// HandlePageDisplay renders a static content page by slug (aviso de
// privacidad, términos, etc.).
func HandlePageDisplay(c *fiber.Ctx) error {
	slug := c.Params("slug")

	page, err := models.FindPageBySlug(database.GetDB(), slug)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("page", fiber.Map{
			"Title":         "Página no encontrada",
			"FromProtected": fromProtected(c),
			"NotFound":      true,
		}, "layouts/main")
	}

	return c.Render("page", fiber.Map{
		"Title":         page.Title,
		"FromProtected": fromProtected(c),
		"Page":          page,
	}, "layouts/main")
}
