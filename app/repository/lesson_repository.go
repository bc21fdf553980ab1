package repository

import (
	"gorm.io/gorm"

	"github.com/manana-app/manana/app/models"
)

type lessonRepository struct {
	db *gorm.DB
}

// NewLessonRepository creates a new GORM backed lesson repository
func NewLessonRepository(db *gorm.DB) LessonRepository {
	return &lessonRepository{db: db}
}

func (r *lessonRepository) Create(lesson *models.SavedLesson) error {
	return r.db.Create(lesson).Error
}

func (r *lessonRepository) GetByID(id uint) (*models.SavedLesson, error) {
	var lesson models.SavedLesson
	err := r.db.First(&lesson, id).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepository) ListByUser(userID uint, limit int, offset int) ([]models.SavedLesson, int64, error) {
	var lessons []models.SavedLesson
	var total int64

	if err := r.db.Model(&models.SavedLesson{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&lessons).Error; err != nil {
		return nil, 0, err
	}

	return lessons, total, nil
}

func (r *lessonRepository) Update(lesson *models.SavedLesson) error {
	return r.db.Save(lesson).Error
}

// Delete removes a lesson, scoped to its owner so one user cannot delete
// another user's entry by id.
func (r *lessonRepository) Delete(id uint, userID uint) error {
	return r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.SavedLesson{}).Error
}

func (r *lessonRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.SavedLesson{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
