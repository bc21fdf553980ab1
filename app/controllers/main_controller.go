package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/manana-app/manana/internal/pkg/billing"
	"github.com/manana-app/manana/internal/pkg/usercontext"
)

// HandleStart renders the landing page.
func HandleStart(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	return c.Render("index", fiber.Map{
		"Title":         "Planeaciones NEM en minutos",
		"FromProtected": fromProtected(c),
		"Username":      userCtx.Username,
		"IsPro":         userCtx.IsPro,
		"Flash":         flash.Get(c),
	}, "layouts/main")
}

// HandlePricing renders the plans page with the monthly price currently in
// effect.
func HandlePricing(c *fiber.Ctx) error {
	monthly := billing.CurrentMonthlyPlan(time.Now())
	yearly := billing.GetPlan("anual")

	return c.Render("pricing", fiber.Map{
		"Title":         "Precios",
		"FromProtected": fromProtected(c),
		"Monthly":       monthly,
		"Yearly":        yearly,
		"Flash":         flash.Get(c),
	}, "layouts/main")
}
