package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// SavedLesson is one entry in a user's lesson library. Anonymous favorites
// never reach this table; they live only in the device cache.
type SavedLesson struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	Topic           string         `gorm:"type:varchar(255);not null" json:"topic" validate:"required,min=1,max=255"`
	Grade           string         `gorm:"type:varchar(50);not null" json:"grade" validate:"required"`
	Duration        string         `gorm:"type:varchar(10);not null" json:"duration"`
	GroupStatus     string         `gorm:"type:varchar(50)" json:"status"`
	Tone            string         `gorm:"type:varchar(50)" json:"tone"`
	GroupSize       string         `gorm:"type:varchar(20)" json:"group_size"`
	Narrative       string         `gorm:"type:varchar(100)" json:"narrative"`
	CustomNarrative string         `gorm:"type:varchar(255)" json:"custom_narrative"`
	Content         string         `gorm:"type:longtext;not null" json:"content" validate:"required,min=1"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (l *SavedLesson) Validate() error {
	v := validator.New()
	return v.Struct(l)
}
