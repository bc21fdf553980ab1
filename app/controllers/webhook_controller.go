package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/manana-app/manana/internal/pkg/billing"
	"github.com/manana-app/manana/internal/pkg/database"
	"github.com/manana-app/manana/internal/pkg/env"
)

// HandleMercadoPagoWebhook receives payment and subscription notifications.
// The body is only trusted for identifiers; entitlement changes come from a
// server-to-server re-fetch inside the billing service.
func HandleMercadoPagoWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	var notification billing.WebhookNotification
	if err := json.Unmarshal(rawBody, &notification); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_payload", "notification body is not valid JSON")
	}

	// MercadoPago also puts the resource id in the query string; prefer the
	// body but fall back so simulator requests verify too.
	dataID := strings.TrimSpace(notification.Data.ID)
	if dataID == "" {
		dataID = strings.TrimSpace(c.Query("data.id", c.Query("id")))
		notification.Data.ID = dataID
	}
	if notification.Type == "" {
		notification.Type = strings.TrimSpace(c.Query("type", c.Query("topic")))
	}

	secret := env.GetEnv("MP_WEBHOOK_SECRET", "")
	signatureValid := false
	if secret != "" {
		if err := billing.CheckWebhookSignature(
			dataID,
			strings.TrimSpace(c.Get("x-request-id")),
			strings.TrimSpace(c.Get("x-signature")),
			secret,
		); err != nil {
			log.Warnf("[Webhook] rejected mercadopago notification with bad signature (type=%s, data.id=%s)", notification.Type, dataID)
			return apiError(c, fiber.StatusUnauthorized, "invalid_signature", err.Error())
		}
		signatureValid = true
	}

	switch notification.Type {
	case billing.ResourcePayment, billing.ResourcePreapproval:
		if dataID == "" {
			return apiError(c, fiber.StatusBadRequest, "invalid_payload", "notification is missing data.id")
		}
	}

	repos := getRepos()
	svc := billing.NewService(repos.User, billing.NewRepository(database.GetDB()), billing.NewMercadoPagoClientFromEnv())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := svc.HandleNotification(ctx, notification, string(rawBody), signatureValid); err != nil {
		switch {
		case errors.Is(err, billing.ErrMalformedPayload):
			return apiError(c, fiber.StatusBadRequest, "invalid_payload", "external reference is missing or malformed")
		case errors.Is(err, billing.ErrUnknownUser):
			return apiError(c, fiber.StatusBadRequest, "unknown_user", "external reference does not match a user")
		default:
			log.Errorf("[Webhook] mercadopago %s %s failed: %v", notification.Type, dataID, err)
			return apiError(c, fiber.StatusInternalServerError, "processing_failed", "notification could not be processed")
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
