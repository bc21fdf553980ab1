package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/manana-app/manana/app/controllers"
	"github.com/manana-app/manana/internal/pkg/env"
	"github.com/manana-app/manana/internal/pkg/middleware"
	"github.com/manana-app/manana/internal/pkg/oauth"
	"github.com/manana-app/manana/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Device cookie first so every later layer can key on it, then the
	// global user context
	app.Use(middleware.DeviceMiddleware)
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func loggedInMiddleware(c *fiber.Ctx) error {
	// UserContextMiddleware already set all user context; nothing extra here
	return c.Next()
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Public page display
	app.Get("/page/:slug", loggedInMiddleware, controllers.HandlePageDisplay)

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/mercadopago", controllers.HandleMercadoPagoWebhook)
}

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", loggedInMiddleware, controllers.HandleStart)
	group.Get("/pricing", loggedInMiddleware, controllers.HandlePricing)
	group.Get("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Get("/forgot-password", loggedInMiddleware, controllers.HandleAuthForgotPassword)
	group.Post("/forgot-password", loggedInMiddleware, controllers.HandleAuthForgotPassword)
	group.Get("/reset-password", loggedInMiddleware, controllers.HandleAuthResetPassword)
	group.Post("/reset-password", loggedInMiddleware, controllers.HandleAuthResetPassword)
}
