package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// Subscription lifecycle states. "none" means the user never started a
// subscription; "cancelled" keeps PRO alive until SubscriptionEndDate passes.
const (
	SubscriptionStatusNone       = "none"
	SubscriptionStatusAuthorized = "authorized"
	SubscriptionStatusPending    = "pending"
	SubscriptionStatusCancelled  = "cancelled"
)

// User is the entitlement record: PRO flag, free-tier generation counter and
// the subscription metadata mirrored from the payment processor.
type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	PublicID            string         `gorm:"type:char(36);uniqueIndex;not null" json:"public_id"`
	Name                string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email               string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Password            string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role                string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status              string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	IsPro               bool           `gorm:"default:false" json:"is_pro"`
	TotalGenerations    int            `gorm:"not null;default:0" json:"total_generations"`
	SubscriptionStatus  string         `gorm:"type:varchar(32);not null;default:'none'" json:"subscription_status"`
	SubscriptionID      string         `gorm:"type:varchar(191);default:'';index" json:"subscription_id"`
	SubscriptionPlan    string         `gorm:"type:varchar(50);default:''" json:"subscription_plan"`
	SubscriptionPrice   float64        `gorm:"default:0" json:"subscription_price"`
	SubscriptionDate    *time.Time     `gorm:"type:timestamp;default:null" json:"subscription_date,omitempty"`
	SubscriptionEndDate *time.Time     `gorm:"type:timestamp;default:null" json:"subscription_end_date,omitempty"`
	AcceptedTerms       bool           `gorm:"default:false" json:"accepted_terms"`
	AcceptedMarketing   bool           `gorm:"default:false" json:"accepted_marketing"`
	TermsAcceptedAt     *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	RecoveryToken       string         `gorm:"type:varchar(100);default:'';index" json:"-"`
	RecoverySentAt      *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	LastLoginAt         *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		PublicID:           uuid.New().String(),
		Name:               username,
		Email:              email,
		Password:           pw,
		Role:               ROLE_USER,
		Status:             STATUS_ACTIVE,
		SubscriptionStatus: SubscriptionStatusNone,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// SubscriptionExpired reports whether a cancelled subscription has run past
// its paid-through date. Only meaningful for status = cancelled; enforcement
// happens lazily at reconciliation time, there is no background timer.
func (u *User) SubscriptionExpired(now time.Time) bool {
	if u.SubscriptionStatus != SubscriptionStatusCancelled {
		return false
	}
	if u.SubscriptionEndDate == nil {
		return false
	}
	return now.After(*u.SubscriptionEndDate)
}

// GenerateRecoveryToken creates a random token and sets RecoverySentAt
func (u *User) GenerateRecoveryToken() error {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	u.RecoveryToken = hex.EncodeToString(b)
	now := time.Now()
	u.RecoverySentAt = &now
	return nil
}

// IsRecoveryTokenValid checks the recovery token and its 24 hour expiry window
func (u *User) IsRecoveryTokenValid(token string) bool {
	if u.RecoveryToken == "" || u.RecoverySentAt == nil {
		return false
	}
	if u.RecoveryToken != token {
		return false
	}
	return time.Since(*u.RecoverySentAt) < 24*time.Hour
}

// ClearRecoveryToken clears the password recovery fields
func (u *User) ClearRecoveryToken() {
	u.RecoveryToken = ""
	u.RecoverySentAt = nil
}
