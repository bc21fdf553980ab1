package repository

import (
	"gorm.io/gorm"

	"github.com/manana-app/manana/app/models"
)

type pageRepository struct {
	db *gorm.DB
}

// NewPageRepository creates a new GORM backed page repository
func NewPageRepository(db *gorm.DB) PageRepository {
	return &pageRepository{db: db}
}

func (r *pageRepository) GetBySlug(slug string) (*models.Page, error) {
	return models.FindPageBySlug(r.db, slug)
}

func (r *pageRepository) List() ([]models.Page, error) {
	var pages []models.Page
	err := r.db.Where("is_active = ?", true).Order("title ASC").Find(&pages).Error
	return pages, err
}
