package controllers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manana-app/manana/app/models"
	"github.com/manana-app/manana/internal/pkg/cache"
	"github.com/manana-app/manana/internal/pkg/devicecache"
	"github.com/manana-app/manana/internal/pkg/entitlements"
	"github.com/manana-app/manana/internal/pkg/jobqueue"
	"github.com/manana-app/manana/internal/pkg/lessongen"
	metrics "github.com/manana-app/manana/internal/pkg/metrics/counter"
	"github.com/manana-app/manana/internal/pkg/pdfexport"
	"github.com/manana-app/manana/internal/pkg/usercontext"
)

const (
	generateTimeout   = 120 * time.Second
	inflightGuardTTL  = 90 * time.Second
	msgRequireAuth    = "Crea una cuenta gratuita para seguir generando planeaciones."
	msgRequireUpgrade = "Alcanzaste tu límite de planeaciones gratuitas. Hazte PRO para generar sin límite."
	msgSafetyBlocked  = "El tema o la narrativa no es apropiada para un salón de clases. Ajusta tu solicitud e intenta de nuevo."
)

// gateSubject is the entitlement view of whoever is making the request,
// signed in or not.
type gateSubject struct {
	snapshot entitlements.Snapshot
	userID   uint
	deviceID string
	signedIn bool
}

func resolveGateSubject(c *fiber.Ctx) gateSubject {
	userCtx := usercontext.GetUserContext(c)
	deviceID := usercontext.GetDeviceID(c)

	if userCtx.IsLoggedIn {
		sub := gateSubject{
			userID:   userCtx.UserID,
			deviceID: deviceID,
			signedIn: true,
			snapshot: entitlements.Snapshot{HasEmail: true},
		}
		if user, err := getRepos().User.GetByID(userCtx.UserID); err == nil {
			sub.snapshot.IsPro = user.IsPro
			sub.snapshot.TotalGenerations = user.TotalGenerations
		}
		return sub
	}

	device := devicecache.Load(deviceID)
	return gateSubject{
		deviceID: deviceID,
		snapshot: entitlements.Snapshot{
			IsPro:            device.IsPro,
			TotalGenerations: device.TotalGenerations,
			HasEmail:         device.Email != "",
		},
	}
}

// recordGeneration counts a successful generation. The device counter is
// always written; the store counter only when a session exists. A failed
// write is logged, never rolled back.
func (g gateSubject) recordGeneration(kind string) int {
	total := g.snapshot.TotalGenerations + 1

	if g.deviceID != "" {
		if n, err := devicecache.IncrementGenerations(g.deviceID); err != nil {
			log.Errorf("[Lessons] device counter increment failed for %s: %v", g.deviceID, err)
		} else if n > total {
			total = n
		}
	}

	if g.signedIn {
		if n, err := getRepos().User.IncrementGenerations(g.userID); err != nil {
			log.Errorf("[Lessons] store counter increment failed for user %d: %v", g.userID, err)
		} else {
			total = n
		}
	}

	if err := metrics.AddGeneration(kind); err != nil {
		log.Errorf("[Lessons] stats counter failed: %v", err)
	}

	return total
}

func (g gateSubject) inflightKey() string {
	if g.signedIn {
		return fmt.Sprintf("inflight:generate:user:%d", g.userID)
	}
	return "inflight:generate:device:" + g.deviceID
}

// HandleAPIGenerateLesson generates a full lesson plan. The usage gate is
// enforced here, server side; the client-side gate is display only.
func HandleAPIGenerateLesson(c *fiber.Ctx) error {
	return handleGeneration(c, metrics.KindLesson, func(ctx context.Context, svc *lessongen.Service, params *lessongen.LessonParams) (string, error) {
		return svc.GenerateLesson(ctx, params)
	})
}

// HandleAPIGeneratePlanB generates the short rescue plan. It shares the gate
// and the counter with the full generation path.
func HandleAPIGeneratePlanB(c *fiber.Ctx) error {
	return handleGeneration(c, metrics.KindPlanB, func(ctx context.Context, svc *lessongen.Service, params *lessongen.LessonParams) (string, error) {
		return svc.GeneratePlanB(ctx, params)
	})
}

func handleGeneration(c *fiber.Ctx, kind string, generate func(context.Context, *lessongen.Service, *lessongen.LessonParams) (string, error)) error {
	var params lessongen.LessonParams
	if err := c.BodyParser(&params); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "request body could not be parsed")
	}

	sub := resolveGateSubject(c)
	limits := entitlements.DefaultLimits()

	switch entitlements.Evaluate(sub.snapshot, limits) {
	case entitlements.DecisionRequireAuth:
		return apiError(c, fiber.StatusUnauthorized, "require_auth", msgRequireAuth)
	case entitlements.DecisionRequireUpgrade:
		return apiError(c, fiber.StatusForbidden, "require_upgrade", msgRequireUpgrade)
	}

	// Double-submit guard: one generation at a time per user or device
	guardKey := sub.inflightKey()
	acquired, err := cache.SetNX(guardKey, "1", inflightGuardTTL)
	if err == nil && !acquired {
		return apiError(c, fiber.StatusTooManyRequests, "generation_in_progress", "Ya hay una planeación generándose. Espera un momento.")
	}
	defer cache.Delete(guardKey)

	ctx, cancel := context.WithTimeout(c.Context(), generateTimeout)
	defer cancel()

	content, err := generate(ctx, lessongen.NewServiceFromEnv(), &params)
	if err != nil {
		if errors.Is(err, lessongen.ErrSafetyBlocked) {
			return apiError(c, fiber.StatusBadRequest, "safety_blocked", msgSafetyBlocked)
		}
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			return apiError(c, fiber.StatusBadRequest, "invalid_params", "Faltan datos de la planeación o son inválidos.")
		}
		log.Errorf("[Lessons] %s generation failed: %v", kind, err)
		return apiError(c, fiber.StatusBadGateway, "generation_failed", "No pudimos generar la planeación. Intenta de nuevo en unos minutos.")
	}

	total := sub.recordGeneration(kind)
	updated := sub.snapshot
	updated.TotalGenerations = total

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"content":           content,
		"total_generations": total,
		"remaining":         entitlements.Remaining(updated, limits),
	})
}

// HandleAPILessonList returns the signed-in user's library, newest first.
func HandleAPILessonList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	lessons, total, err := getRepos().Lesson.ListByUser(userCtx.UserID, limit, offset)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "list_failed", "lessons could not be loaded")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"lessons": lessons,
		"total":   total,
	})
}

type saveLessonRequest struct {
	Topic           string `json:"topic"`
	Grade           string `json:"grade"`
	Duration        string `json:"duration"`
	Status          string `json:"status"`
	Tone            string `json:"tone"`
	GroupSize       string `json:"group_size"`
	Narrative       string `json:"narrative"`
	CustomNarrative string `json:"custom_narrative"`
	Content         string `json:"content"`
}

// HandleAPILessonSave stores a generated plan in the user's library. Free
// accounts are capped; PRO saves without limit.
func HandleAPILessonSave(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req saveLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "request body could not be parsed")
	}

	repos := getRepos()
	limits := entitlements.DefaultLimits()

	count, err := repos.Lesson.CountByUser(userCtx.UserID)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "save_failed", "lesson could not be saved")
	}
	if !entitlements.CanSaveFavorite(userCtx.IsPro, int(count), limits) {
		return apiError(c, fiber.StatusForbidden, "favorites_limit", "Alcanzaste el límite de planeaciones guardadas. Hazte PRO para guardar sin límite.")
	}

	lesson := &models.SavedLesson{
		UserID:          userCtx.UserID,
		Topic:           req.Topic,
		Grade:           req.Grade,
		Duration:        req.Duration,
		GroupStatus:     req.Status,
		Tone:            req.Tone,
		GroupSize:       req.GroupSize,
		Narrative:       req.Narrative,
		CustomNarrative: req.CustomNarrative,
		Content:         req.Content,
	}
	if err := lesson.Validate(); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_params", "topic, grade and content are required")
	}
	if err := repos.Lesson.Create(lesson); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "save_failed", "lesson could not be saved")
	}

	return c.Status(fiber.StatusCreated).JSON(lesson)
}

// HandleAPILessonRename updates the topic of a saved lesson.
func HandleAPILessonRename(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "lesson id is not a number")
	}

	var req struct {
		Topic string `json:"topic"`
	}
	if err := c.BodyParser(&req); err != nil || req.Topic == "" {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "topic is required")
	}

	repos := getRepos()
	lesson, err := repos.Lesson.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apiError(c, fiber.StatusNotFound, "not_found", "lesson not found")
		}
		return apiError(c, fiber.StatusInternalServerError, "rename_failed", "lesson could not be updated")
	}
	if lesson.UserID != userCtx.UserID {
		return apiError(c, fiber.StatusNotFound, "not_found", "lesson not found")
	}

	lesson.Topic = req.Topic
	if err := repos.Lesson.Update(lesson); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "rename_failed", "lesson could not be updated")
	}

	return c.Status(fiber.StatusOK).JSON(lesson)
}

// HandleAPILessonDelete removes a saved lesson, owner scoped.
func HandleAPILessonDelete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "lesson id is not a number")
	}

	if err := getRepos().Lesson.Delete(uint(id), userCtx.UserID); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "delete_failed", "lesson could not be deleted")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleAPILessonPDF renders a saved lesson as a printable PDF and queues the
// archive upload in the background.
func HandleAPILessonPDF(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "lesson id is not a number")
	}

	lesson, err := getRepos().Lesson.GetByID(uint(id))
	if err != nil || lesson.UserID != userCtx.UserID {
		return apiError(c, fiber.StatusNotFound, "not_found", "lesson not found")
	}

	pdfBytes, err := pdfexport.NewGenerator().Generate(&pdfexport.Lesson{
		Topic:     lesson.Topic,
		Grade:     lesson.Grade,
		Duration:  lesson.Duration,
		Content:   lesson.Content,
		CreatedAt: lesson.CreatedAt,
	})
	if err != nil {
		log.Errorf("[Lessons] PDF render failed for lesson %d: %v", lesson.ID, err)
		return apiError(c, fiber.StatusInternalServerError, "pdf_failed", "PDF could not be generated")
	}

	if _, err := jobqueue.GetManager().GetQueue().EnqueueLessonArchiveJob(lesson.ID, lesson.UserID); err != nil {
		// Archive is best effort; the download still succeeds
		log.Errorf("[Lessons] failed to enqueue archive job for lesson %d: %v", lesson.ID, err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="planeacion-%d.pdf"`, lesson.ID))
	return c.Send(pdfBytes)
}

// HandleAPIFavoritesList returns the anonymous device favorites.
func HandleAPIFavoritesList(c *fiber.Ctx) error {
	deviceID := usercontext.GetDeviceID(c)

	favs, err := devicecache.GetFavorites(deviceID)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "list_failed", "favorites could not be loaded")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"favorites": favs})
}

// HandleAPIFavoriteSave adds an anonymous favorite under the free cap.
func HandleAPIFavoriteSave(c *fiber.Ctx) error {
	deviceID := usercontext.GetDeviceID(c)

	var req struct {
		Topic   string `json:"topic"`
		Grade   string `json:"grade"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil || req.Topic == "" || req.Content == "" {
		return apiError(c, fiber.StatusBadRequest, "invalid_request", "topic and content are required")
	}

	favs, err := devicecache.GetFavorites(deviceID)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "save_failed", "favorite could not be saved")
	}

	device := devicecache.Load(deviceID)
	limits := entitlements.DefaultLimits()
	if !entitlements.CanSaveFavorite(device.IsPro, len(favs), limits) {
		return apiError(c, fiber.StatusForbidden, "favorites_limit", "Alcanzaste el límite de favoritos gratuitos. Crea una cuenta PRO para guardar sin límite.")
	}

	fav := devicecache.Favorite{
		ID:        uuid.New().String(),
		Topic:     req.Topic,
		Grade:     req.Grade,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := devicecache.SaveFavorites(deviceID, append(favs, fav)); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "save_failed", "favorite could not be saved")
	}

	return c.Status(fiber.StatusCreated).JSON(fav)
}

// HandleAPIFavoriteDelete removes an anonymous favorite by id.
func HandleAPIFavoriteDelete(c *fiber.Ctx) error {
	deviceID := usercontext.GetDeviceID(c)
	favID := c.Params("id")

	favs, err := devicecache.GetFavorites(deviceID)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "delete_failed", "favorite could not be deleted")
	}

	kept := favs[:0]
	for _, f := range favs {
		if f.ID != favID {
			kept = append(kept, f)
		}
	}
	if err := devicecache.SaveFavorites(deviceID, kept); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "delete_failed", "favorite could not be deleted")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
