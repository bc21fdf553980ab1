package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/manana-app/manana/app/models"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new GORM backed user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByPublicID(publicID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("public_id = ?", publicID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetBySubscriptionID(subscriptionID string) (*models.User, error) {
	if subscriptionID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("subscription_id = ?", subscriptionID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByRecoveryToken(token string) (*models.User, error) {
	if token == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("recovery_token = ?", token).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *userRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, id).Error
}

// IncrementGenerations bumps the free-tier counter atomically in SQL and
// returns the new total. The counter only ever grows.
func (r *userRepository) IncrementGenerations(id uint) (int, error) {
	err := r.db.Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("total_generations", gorm.Expr("total_generations + ?", 1)).Error
	if err != nil {
		return 0, err
	}

	var user models.User
	if err := r.db.Select("total_generations").First(&user, id).Error; err != nil {
		return 0, err
	}
	return user.TotalGenerations, nil
}

// SetGenerations overwrites the counter. Only used when registration carries
// a larger anonymous device counter forward; callers must never lower it.
func (r *userRepository) SetGenerations(id uint, total int) error {
	if total < 0 {
		return errors.New("generation total cannot be negative")
	}
	return r.db.Model(&models.User{}).
		Where("id = ? AND total_generations < ?", id, total).
		UpdateColumn("total_generations", total).Error
}

func (r *userRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) UpdateLastLogin(id uint, when time.Time) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", when).Error
}
