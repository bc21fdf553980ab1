package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/manana-app/manana/internal/pkg/env"
	icuser "github.com/manana-app/manana/internal/pkg/usercontext"
)

const deviceCookieName = "manana_device_id"

// DeviceMiddleware guarantees every visitor carries a stable device ID. The
// anonymous entitlement state in Redis is keyed by this cookie, so it has to
// exist before any gate decision runs.
func DeviceMiddleware(c *fiber.Ctx) error {
	deviceID := c.Cookies(deviceCookieName)
	if deviceID == "" {
		deviceID = uuid.New().String()
		c.Cookie(&fiber.Cookie{
			Name:     deviceCookieName,
			Value:    deviceID,
			Expires:  time.Now().Add(180 * 24 * time.Hour),
			HTTPOnly: true,
			SameSite: "Lax",
			Secure:   !env.IsDev(),
		})
	}

	c.Locals(icuser.KeyDeviceID, deviceID)
	return c.Next()
}
