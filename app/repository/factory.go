package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories bundles all repository implementations
type Repositories struct {
	User   UserRepository
	Lesson LessonRepository
	Page   PageRepository
}

var (
	instance *Repositories
	once     sync.Once
)

// GetRepositories returns the singleton repository bundle, creating it on
// first use with the given database handle.
func GetRepositories(db *gorm.DB) *Repositories {
	once.Do(func() {
		instance = &Repositories{
			User:   NewUserRepository(db),
			Lesson: NewLessonRepository(db),
			Page:   NewPageRepository(db),
		}
	})

	return instance
}

// ResetRepositories clears the singleton. Only used by tests.
func ResetRepositories() {
	instance = nil
	once = sync.Once{}
}
