package models

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mnuddindev/otakushelf/pkg/utils"
	"gorm.io/gorm"
)

// Credential is the identity record owned by the session provider.
type Credential struct {
	Subject      string    `gorm:"size:64;primaryKey" json:"subject"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewCredential hashes password and stores a credential under a fresh subject.
func NewCredential(ctx context.Context, db *gorm.DB, email, password string) (*Credential, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, utils.NewInternalError("Failed to hash password", err)
	}

	c := &Credential{
		Subject:      uuid.NewString(),
		Email:        utils.NormalizeEmail(email),
		PasswordHash: hash,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.NewConflictError("Email '"+c.Email+"' is already registered", fiber.Map{"email": c.Email})
		}
		return nil, utils.NewInternalError("Failed to store credential", err)
	}
	return c, nil
}

// GetCredentialByEmail returns nil, nil when no credential exists.
func GetCredentialByEmail(ctx context.Context, db *gorm.DB, email string) (*Credential, error) {
	var c Credential
	err := db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewInternalError("Failed to load credential", err)
	}
	return &c, nil
}

func DeleteCredential(ctx context.Context, db *gorm.DB, subject string) error {
	if err := db.WithContext(ctx).Where("subject = ?", subject).Delete(&Credential{}).Error; err != nil {
		return utils.NewInternalError("Failed to delete credential", err)
	}
	return nil
}
