package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/manana-app/manana/app/repository"
	"github.com/manana-app/manana/internal/pkg/database"
	"github.com/manana-app/manana/internal/pkg/session"
	"github.com/manana-app/manana/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	// Avoid interfering with Goth/Fiber session handling on OAuth routes.
	// Goth uses its own fiber session store and relies on per-request locals.
	// We skip our app session on /auth/* to prevent cross-store collisions.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		setAnonymousContext(c)
		return c.Next()
	}

	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		setAnonymousContext(c)
		return c.Next()
	}

	username := session.GetSessionValue(c, usercontext.KeyUsername)
	email := session.GetSessionValue(c, usercontext.KeyUserEmail)
	publicID := session.GetSessionValue(c, usercontext.KeyUserPublicID)
	isAdmin := sess.Get(usercontext.KeyIsAdmin)

	// PRO status is read fresh from the record so a webhook grant or a lapsed
	// subscription shows up without re-login
	isPro := false
	if db := database.GetDB(); db != nil {
		repos := repository.GetRepositories(db)
		if user, uerr := repos.User.GetByID(userID.(uint)); uerr == nil {
			isPro = user.IsPro
		}
	}

	userCtx := usercontext.UserContext{
		UserID:     userID.(uint),
		PublicID:   publicID,
		Username:   username,
		Email:      email,
		IsLoggedIn: true,
		IsAdmin:    isAdmin != nil && isAdmin.(bool),
		IsPro:      isPro,
	}
	c.Locals("USER_CONTEXT", userCtx)

	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyUsername, username)
	c.Locals(usercontext.KeyUserID, userID.(uint))
	c.Locals(usercontext.KeyIsAdmin, userCtx.IsAdmin)

	return c.Next()
}

func setAnonymousContext(c *fiber.Ctx) {
	c.Locals("USER_CONTEXT", usercontext.UserContext{
		IsLoggedIn: false,
		IsAdmin:    false,
	})
	c.Locals(usercontext.KeyFromProtected, false)
	c.Locals(usercontext.KeyIsAdmin, false)
}
