package repository

import (
	"time"

	"github.com/manana-app/manana/app/models"
)

// UserRepository covers the entitlement record operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByPublicID(publicID string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetBySubscriptionID(subscriptionID string) (*models.User, error)
	GetByRecoveryToken(token string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	IncrementGenerations(id uint) (int, error)
	SetGenerations(id uint, total int) error
	ExistsByEmail(email string) (bool, error)
	UpdateLastLogin(id uint, when time.Time) error
}

// LessonRepository covers the saved lesson library
type LessonRepository interface {
	Create(lesson *models.SavedLesson) error
	GetByID(id uint) (*models.SavedLesson, error)
	ListByUser(userID uint, limit int, offset int) ([]models.SavedLesson, int64, error)
	Update(lesson *models.SavedLesson) error
	Delete(id uint, userID uint) error
	CountByUser(userID uint) (int64, error)
}

// PageRepository covers static content pages
type PageRepository interface {
	GetBySlug(slug string) (*models.Page, error)
	List() ([]models.Page, error)
}
