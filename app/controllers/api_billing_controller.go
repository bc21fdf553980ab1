package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/manana-app/manana/internal/pkg/billing"
	"github.com/manana-app/manana/internal/pkg/database"
	"github.com/manana-app/manana/internal/pkg/env"
	"github.com/manana-app/manana/internal/pkg/mail"
	"github.com/manana-app/manana/internal/pkg/usercontext"
)

const billingTimeout = 20 * time.Second

func billingService() *billing.Service {
	repos := getRepos()
	return billing.NewService(repos.User, billing.NewRepository(database.GetDB()), billing.NewMercadoPagoClientFromEnv())
}

func checkoutBackURL(path string) string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base + path
}

// HandleAPIBillingPlans returns the plan catalog and which monthly price is
// currently in effect.
func HandleAPIBillingPlans(c *fiber.Ctx) error {
	monthly := billing.CurrentMonthlyPlan(time.Now())
	yearly := billing.GetPlan("anual")

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"monthly": fiber.Map{
			"id":        monthly.ID,
			"name":      monthly.Name,
			"price_mxn": monthly.PriceMXN,
		},
		"yearly": fiber.Map{
			"id":        yearly.ID,
			"name":      yearly.Name,
			"price_mxn": yearly.PriceMXN,
		},
	})
}

type checkoutRequest struct {
	PlanID      string `json:"plan_id"`
	CardTokenID string `json:"card_token_id"`
	IssuerID    string `json:"issuer_id"`
	MethodID    string `json:"payment_method_id"`
}

// HandleAPICheckoutPreference creates a hosted checkout for a one-time plan
// (the yearly pass) and returns the redirect URL.
func HandleAPICheckoutPreference(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "request body could not be parsed")
	}

	plan := billing.GetPlan(req.PlanID)

	ctx, cancel := context.WithTimeout(c.Context(), billingTimeout)
	defer cancel()

	client := billing.NewMercadoPagoClientFromEnv()
	pref, err := client.CreatePreference(ctx, billing.CreatePreferenceRequest{
		Title:             "MAÑANA PRO - " + plan.Name,
		Amount:            plan.PriceMXN,
		PayerEmail:        userCtx.Email,
		ExternalReference: billing.BuildExternalReference(userCtx.PublicID, plan.ID),
		SuccessURL:        checkoutBackURL("/checkout/success"),
		FailureURL:        checkoutBackURL("/checkout/failure"),
		PendingURL:        checkoutBackURL("/checkout/pending"),
	})
	if err != nil {
		log.Errorf("[Billing] preference creation failed for user %d: %v", userCtx.UserID, err)
		return apiError(c, fiber.StatusBadGateway, "checkout_failed", "El checkout no pudo iniciarse. Intenta de nuevo.")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"preference_id": pref.ID,
		"init_point":    pref.InitPoint,
	})
}

// HandleAPICheckoutSubscription starts a monthly subscription. With a card
// token the preapproval authorizes immediately; without one the caller is
// redirected to the processor's flow.
func HandleAPICheckoutSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "request body could not be parsed")
	}

	plan := billing.CurrentMonthlyPlan(time.Now())
	if req.PlanID != "" && billing.KnownPlan(req.PlanID) {
		plan = billing.GetPlan(req.PlanID)
	}

	ctx, cancel := context.WithTimeout(c.Context(), billingTimeout)
	defer cancel()

	client := billing.NewMercadoPagoClientFromEnv()
	result, err := client.CreatePreapproval(ctx, billing.CreatePreapprovalRequest{
		Reason:            "MAÑANA PRO - " + plan.Name,
		Amount:            plan.PriceMXN,
		PayerEmail:        userCtx.Email,
		CardTokenID:       req.CardTokenID,
		ExternalReference: billing.BuildExternalReference(userCtx.PublicID, plan.ID),
		BackURL:           checkoutBackURL("/checkout/success"),
	})
	if err != nil {
		log.Errorf("[Billing] preapproval creation failed for user %d: %v", userCtx.UserID, err)
		return apiError(c, fiber.StatusBadGateway, "checkout_failed", "La suscripción no pudo iniciarse. Intenta de nuevo.")
	}

	// Mirror what the processor told us; the webhook confirms it later
	if err := billingService().ApplyPreapprovalEvent(ctx, result.ID); err != nil {
		log.Errorf("[Billing] preapproval sync failed for user %d: %v", userCtx.UserID, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"subscription_id": result.ID,
		"status":          result.Status,
		"init_point":      result.InitPoint,
	})
}

// HandleAPICheckoutPayment charges a tokenized card for a one-time plan. A
// rejection returns the mapped Spanish reason for display.
func HandleAPICheckoutPayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "request body could not be parsed")
	}
	if req.CardTokenID == "" {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "card_token_id is required")
	}

	plan := billing.GetPlan(req.PlanID)

	ctx, cancel := context.WithTimeout(c.Context(), billingTimeout)
	defer cancel()

	client := billing.NewMercadoPagoClientFromEnv()
	payment, err := client.CreatePayment(ctx, billing.CreatePaymentRequest{
		Token:             req.CardTokenID,
		IssuerID:          req.IssuerID,
		PaymentMethodID:   req.MethodID,
		Amount:            plan.PriceMXN,
		PayerEmail:        userCtx.Email,
		Description:       "MAÑANA PRO - " + plan.Name,
		ExternalReference: billing.BuildExternalReference(userCtx.PublicID, plan.ID),
	})
	if err != nil {
		log.Errorf("[Billing] payment failed for user %d: %v", userCtx.UserID, err)
		return apiError(c, fiber.StatusBadGateway, "payment_failed", "El pago no pudo procesarse. Intenta de nuevo.")
	}

	if payment.Status == billing.PaymentStatusRejected {
		return apiError(c, fiber.StatusPaymentRequired, "payment_rejected", billing.RejectionMessage(payment.StatusDetail))
	}

	if payment.Status == billing.PaymentStatusApproved {
		if err := billingService().ApplyPaymentEvent(ctx, fmt.Sprintf("%d", payment.ID)); err != nil {
			log.Errorf("[Billing] entitlement grant failed for user %d: %v", userCtx.UserID, err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// HandleAPISubscriptionCancel cancels the caller's subscription at the
// processor and locally. PRO stays on until the paid-through date; the lazy
// expiry at reconciliation turns it off.
func HandleAPISubscriptionCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req cancelRequest
	_ = c.BodyParser(&req)

	user, err := getRepos().User.GetByID(userCtx.UserID)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "cancel_failed", "subscription could not be cancelled")
	}

	ctx, cancel := context.WithTimeout(c.Context(), billingTimeout)
	defer cancel()

	if err := billingService().CancelSubscription(ctx, user); err != nil {
		if errors.Is(err, billing.ErrSubscriptionState) {
			return apiError(c, fiber.StatusConflict, "no_subscription", "No hay una suscripción activa que cancelar.")
		}
		log.Errorf("[Billing] cancellation failed for user %d: %v", user.ID, err)
		return apiError(c, fiber.StatusBadGateway, "cancel_failed", "La cancelación no pudo completarse. Intenta de nuevo.")
	}

	// Feedback goes to support; failures here never block the cancellation
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		support := env.GetEnv("SUPPORT_EMAIL", "")
		if support != "" {
			go func() {
				body := fmt.Sprintf("<p>Cancelación de %s (%s)</p><p>Motivo: %s</p>", user.Name, user.Email, reason)
				if merr := mail.SendMail(support, "Cancelación de suscripción", body); merr != nil {
					log.Errorf("[Billing] cancellation feedback mail failed: %v", merr)
				}
			}()
		}
	}

	resp := fiber.Map{
		"ok":                  true,
		"subscription_status": user.SubscriptionStatus,
	}
	if user.SubscriptionEndDate != nil {
		resp["pro_until"] = user.SubscriptionEndDate
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
