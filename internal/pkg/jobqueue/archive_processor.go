package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/manana-app/manana/app/repository"
	"github.com/manana-app/manana/internal/pkg/database"
	"github.com/manana-app/manana/internal/pkg/lessonarchive"
	"github.com/manana-app/manana/internal/pkg/pdfexport"
)

// EnqueueLessonArchiveJob enqueues the PDF render and upload for a saved lesson
func (q *Queue) EnqueueLessonArchiveJob(lessonID, userID uint) (*Job, error) {
	payload := LessonArchiveJobPayload{
		LessonID: lessonID,
		UserID:   userID,
	}
	return q.EnqueueJob(JobTypeLessonArchive, payload.ToMap())
}

// processLessonArchiveJob renders a saved lesson to PDF and uploads it to the
// archive bucket. When the archive is disabled the job completes as a no-op.
func (q *Queue) processLessonArchiveJob(ctx context.Context, job *Job) error {
	payload, perr := LessonArchiveJobPayloadFromMap(job.Payload)
	if perr != nil {
		return fmt.Errorf("failed to parse lesson archive payload: %w", perr)
	}

	cfg, err := lessonarchive.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load archive config: %w", err)
	}
	if !cfg.IsEnabled() {
		log.Infof("[LessonArchiveJob] Archive disabled, skipping lesson %d", payload.LessonID)
		return nil
	}

	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	repos := repository.GetRepositories(db)
	lesson, err := repos.Lesson.GetByID(payload.LessonID)
	if err != nil {
		// Lesson deleted between enqueue and processing; nothing to archive
		log.Infof("[LessonArchiveJob] Lesson %d not found (deleted?), skipping", payload.LessonID)
		return nil
	}
	if lesson.UserID != payload.UserID {
		return fmt.Errorf("lesson %d does not belong to user %d", payload.LessonID, payload.UserID)
	}

	generator := pdfexport.NewGenerator()
	pdfBytes, err := generator.Generate(&pdfexport.Lesson{
		Topic:     lesson.Topic,
		Grade:     lesson.Grade,
		Duration:  lesson.Duration,
		Content:   lesson.Content,
		CreatedAt: lesson.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to render lesson %d: %w", payload.LessonID, err)
	}

	client, err := lessonarchive.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create archive client: %w", err)
	}

	objectKey := cfg.GetObjectKey(lesson.ID, lesson.CreatedAt)
	if err := client.UploadPDF(ctx, objectKey, pdfBytes); err != nil {
		return fmt.Errorf("failed to archive lesson %d: %w", payload.LessonID, err)
	}

	log.Infof("[LessonArchiveJob] Archived lesson %d as %s", lesson.ID, objectKey)
	return nil
}
