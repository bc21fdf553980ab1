package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/manana-app/manana/app/models"
	"github.com/manana-app/manana/internal/pkg/env"
	"github.com/manana-app/manana/internal/pkg/hcaptcha"
	"github.com/manana-app/manana/internal/pkg/mail"
	"github.com/manana-app/manana/internal/pkg/session"
	"github.com/manana-app/manana/internal/pkg/usercontext"
)

func HandleAuthLogin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		// notice: in production you should not inform the user
		// with detailed messages about login failures
		user, err := getRepos().User.GetByEmail(strings.TrimSpace(strings.ToLower(c.FormValue("email"))))
		if err != nil {
			fm["message"] = "Correo o contraseña incorrectos"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if !user.CheckPassword(c.FormValue("password")) {
			fm["message"] = "Correo o contraseña incorrectos"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if !user.IsActive() {
			fm["message"] = "Tu cuenta está desactivada"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if err := startUserSession(c, user); err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		_ = getRepos().User.UpdateLastLogin(user.ID, time.Now())

		fm = fiber.Map{
			"type":    "success",
			"message": "¡Bienvenida de nuevo!",
		}

		return flash.WithSuccess(c, fm).Redirect("/")
	}

	return c.Render("auth/login", fiber.Map{
		"Title":         "Iniciar sesión",
		"FromProtected": fromProtected(c),
		"CSRFToken":     csrfToken(c),
		"Flash":         flash.Get(c),
	}, "layouts/main")
}

func HandleAuthLogout(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	if err := session.DestroySession(c); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Sesión cerrada. ¡Hasta mañana!",
	}

	c.Locals(FROM_PROTECTED, false)

	return flash.WithSuccess(c, fm).Redirect("/login")
}

func HandleAuthRegister(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		// Verify hCaptcha token
		hcaptchaToken := c.FormValue("h-captcha-response")
		valid, err := hcaptcha.Verify(hcaptchaToken)
		if err != nil || !valid {
			errorMsg := "No pudimos validar el captcha. Intenta de nuevo."
			if err != nil && env.IsDev() {
				errorMsg = fmt.Sprintf("Captcha validation failed: %v", err)
			}

			fm := fiber.Map{
				"type":    "error",
				"message": errorMsg,
			}
			return flash.WithError(c, fm).Redirect("/register")
		}

		if c.FormValue("accepted_terms") == "" {
			fm := fiber.Map{
				"type":    "error",
				"message": "Debes aceptar los términos y condiciones.",
			}
			return flash.WithError(c, fm).Redirect("/register")
		}

		user, err := models.CreateUser(
			c.FormValue("name"),
			strings.TrimSpace(strings.ToLower(c.FormValue("email"))),
			c.FormValue("password"),
		)
		if err != nil {
			fm := fiber.Map{
				"type":    "error",
				"message": "Revisa tus datos: nombre, correo y una contraseña de al menos 6 caracteres.",
			}

			return flash.WithError(c, fm).Redirect("/register")
		}

		now := time.Now()
		user.AcceptedTerms = true
		user.AcceptedMarketing = c.FormValue("accepted_marketing") != ""
		user.TermsAcceptedAt = &now

		if err := getRepos().User.Create(user); err != nil {
			fm := fiber.Map{
				"type":    "error",
				"message": "Ese correo ya tiene una cuenta. Inicia sesión.",
			}

			return flash.WithError(c, fm).Redirect("/register")
		}

		fm := fiber.Map{
			"type":    "success",
			"message": "¡Cuenta creada! Inicia sesión para continuar.",
		}

		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	return c.Render("auth/register", fiber.Map{
		"Title":           "Crear cuenta",
		"FromProtected":   fromProtected(c),
		"CSRFToken":       csrfToken(c),
		"HCaptchaSitekey": env.GetEnv("HCAPTCHA_SITEKEY", ""),
		"Flash":           flash.Get(c),
	}, "layouts/main")
}

// HandleAuthForgotPassword sends the recovery link. The response is the same
// whether the address exists or not.
func HandleAuthForgotPassword(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		email := strings.TrimSpace(strings.ToLower(c.FormValue("email")))

		repos := getRepos()
		if user, err := repos.User.GetByEmail(email); err == nil {
			if terr := user.GenerateRecoveryToken(); terr == nil {
				if uerr := repos.User.Update(user); uerr == nil {
					base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
					if base == "" {
						base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
					}
					recoveryURL := fmt.Sprintf("%s/reset-password?token=%s", base, user.RecoveryToken)
					go func() {
						_ = mail.SendRecoveryMail(user.Email, user.Name, recoveryURL)
					}()
				}
			}
		}

		fm := fiber.Map{
			"type":    "success",
			"message": "Si ese correo tiene una cuenta, te enviamos un enlace de recuperación.",
		}
		return flash.WithSuccess(c, fm).Redirect("/forgot-password")
	}

	return c.Render("auth/forgot", fiber.Map{
		"Title":         "Recuperar contraseña",
		"FromProtected": fromProtected(c),
		"CSRFToken":     csrfToken(c),
		"Flash":         flash.Get(c),
	}, "layouts/main")
}

// HandleAuthResetPassword validates the recovery token and sets the new
// password. Tokens expire after 24 hours.
func HandleAuthResetPassword(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token", c.FormValue("token")))
	if token == "" {
		return c.Redirect("/forgot-password", fiber.StatusSeeOther)
	}

	repos := getRepos()

	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		user, err := repos.User.GetByRecoveryToken(token)
		if err != nil || !user.IsRecoveryTokenValid(token) {
			fm["message"] = "El enlace de recuperación no es válido o ya expiró."

			return flash.WithError(c, fm).Redirect("/forgot-password")
		}

		password := c.FormValue("password")
		if len(password) < 6 {
			fm["message"] = "La contraseña debe tener al menos 6 caracteres."

			return flash.WithError(c, fm).Redirect("/reset-password?token=" + token)
		}

		if err := user.SetPassword(password); err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/forgot-password")
		}
		user.ClearRecoveryToken()

		if err := repos.User.Update(user); err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/forgot-password")
		}

		fm = fiber.Map{
			"type":    "success",
			"message": "Contraseña actualizada. Inicia sesión.",
		}
		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	return c.Render("auth/reset", fiber.Map{
		"Title":         "Nueva contraseña",
		"FromProtected": fromProtected(c),
		"CSRFToken":     csrfToken(c),
		"Token":         token,
		"Flash":         flash.Get(c),
	}, "layouts/main")
}

// startUserSession writes the logged-in identity into the session store
func startUserSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}

	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyUserEmail, user.Email)
	sess.Set(usercontext.KeyUserPublicID, user.PublicID)
	sess.Set(usercontext.KeyIsAdmin, user.Role == models.ROLE_ADMIN)

	return sess.Save()
}
