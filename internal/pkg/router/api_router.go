package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/manana-app/manana/app/controllers"
	"github.com/manana-app/manana/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Session / entitlements
	v1.Get("/session", controllers.HandleAPISessionState)
	v1.Post("/auth/register", controllers.HandleAPIRegister)

	// Lesson generation (gate enforced in the handler, anonymous allowed)
	v1.Post("/lessons/generate", controllers.HandleAPIGenerateLesson)
	v1.Post("/lessons/planb", controllers.HandleAPIGeneratePlanB)

	// Anonymous device favorites
	v1.Get("/favorites", controllers.HandleAPIFavoritesList)
	v1.Post("/favorites", controllers.HandleAPIFavoriteSave)
	v1.Delete("/favorites/:id", controllers.HandleAPIFavoriteDelete)

	// Saved-lesson library (account required)
	v1.Get("/lessons", middleware.RequireAPISessionAuth, controllers.HandleAPILessonList)
	v1.Post("/lessons", middleware.RequireAPISessionAuth, controllers.HandleAPILessonSave)
	v1.Patch("/lessons/:id", middleware.RequireAPISessionAuth, controllers.HandleAPILessonRename)
	v1.Delete("/lessons/:id", middleware.RequireAPISessionAuth, controllers.HandleAPILessonDelete)
	v1.Get("/lessons/:id/pdf", middleware.RequireAPISessionAuth, controllers.HandleAPILessonPDF)

	// Billing
	v1.Get("/billing/plans", controllers.HandleAPIBillingPlans)
	v1.Post("/billing/checkout/preference", middleware.RequireAPISessionAuth, controllers.HandleAPICheckoutPreference)
	v1.Post("/billing/checkout/subscription", middleware.RequireAPISessionAuth, controllers.HandleAPICheckoutSubscription)
	v1.Post("/billing/checkout/payment", middleware.RequireAPISessionAuth, controllers.HandleAPICheckoutPayment)
	v1.Post("/billing/subscription/cancel", middleware.RequireAPISessionAuth, controllers.HandleAPISubscriptionCancel)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
