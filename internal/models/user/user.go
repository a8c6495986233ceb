package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	storage "github.com/mnuddindev/otakushelf/pkg/redis"
	"github.com/mnuddindev/otakushelf/pkg/utils"
	"gorm.io/gorm"
)

// ProfileCacheTTL bounds how long a cached profile row may be served.
const ProfileCacheTTL = 10 * time.Minute

// User is the application profile. Credentials live with the session
// provider; Subject links the two.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Subject   string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Username  string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	FullName  *string   `gorm:"size:100" json:"full_name"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// cachedUser keeps Subject, which User hides from API responses.
type cachedUser struct {
	User
	Subject string `json:"subject"`
}

// Profile is the read model returned by /users/me.
type Profile struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FullName       *string   `json:"full_name"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	WatchlistCount int64     `json:"watchlist_count"`
	DisplayName    string    `json:"display_name"`
	AccountAgeDays int       `json:"account_age_days"`
}

// UserOption configures a User.
type UserOption func(*User)

// DisplayName is the full name when set, the username otherwise.
func (u *User) DisplayName() string {
	if u.FullName != nil && strings.TrimSpace(*u.FullName) != "" {
		return *u.FullName
	}
	return u.Username
}

// ToProfile builds the /me payload.
func (u *User) ToProfile(watchlistCount int64, now time.Time) Profile {
	return Profile{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FullName:       u.FullName,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
		WatchlistCount: watchlistCount,
		DisplayName:    u.DisplayName(),
		AccountAgeDays: int(now.Sub(u.CreatedAt).Hours() / 24),
	}
}

// NewUser creates the profile for an identity-provider subject.
func NewUser(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, subject, username, email string, opts ...UserOption) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.WrapError(err, fiber.StatusInternalServerError, "user creation canceled")
	}

	u := &User{
		Subject:  subject,
		Username: username,
		Email:    utils.NormalizeEmail(email),
		IsActive: true,
	}

	for _, opt := range opts {
		opt(u)
	}

	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.NewConflictError("Username or email is already registered", fiber.Map{"username": username, "email": u.Email})
		}
		return nil, utils.NewInternalError("Failed to create user in database", err)
	}

	CacheUser(ctx, rclient, u)
	return u, nil
}

// GetUserBy loads a single user matching condition.
func GetUserBy(ctx context.Context, db *gorm.DB, condition string, args ...interface{}) (*User, error) {
	var u User
	if err := db.WithContext(ctx).Where(condition, args...).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("User", nil)
		}
		return nil, utils.NewInternalError("Failed to get user", err)
	}
	return &u, nil
}

// GetUserBySubject serves the profile from Redis when cached, else from the
// database, refreshing the cache.
func GetUserBySubject(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, subject string) (*User, error) {
	if rclient != nil {
		var cached cachedUser
		if err := rclient.GetJSON(ctx, profileKey(subject), &cached); err == nil {
			cached.User.Subject = cached.Subject
			return &cached.User, nil
		}
	}

	u, err := GetUserBy(ctx, db, "subject = ?", subject)
	if err != nil {
		return nil, err
	}
	CacheUser(ctx, rclient, u)
	return u, nil
}

// UpdateUser applies opts and saves the row. A username collision is a 400,
// matching the profile API contract.
func UpdateUser(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, id uint, opts ...UserOption) (*User, error) {
	u, err := GetUserBy(ctx, db, "id = ?", id)
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(u)
	}

	if err := db.WithContext(ctx).Save(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.NewError(fiber.StatusBadRequest, "Username already taken", fiber.Map{"field": "username"})
		}
		return nil, utils.NewInternalError("Failed to update user", err)
	}

	InvalidateUser(ctx, rclient, u.Subject)
	return u, nil
}

// DeactivateUser flips is_active off. The row is kept.
func DeactivateUser(ctx context.Context, rclient *storage.RedisClient, db *gorm.DB, id uint) error {
	u, err := GetUserBy(ctx, db, "id = ?", id)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Model(u).Update("is_active", false).Error; err != nil {
		return utils.NewInternalError("Failed to deactivate user", err)
	}
	InvalidateUser(ctx, rclient, u.Subject)
	return nil
}

// IsUsernameAvailable reports whether nobody other than excludeID holds username.
func IsUsernameAvailable(ctx context.Context, db *gorm.DB, username string, excludeID uint) (bool, error) {
	var count int64
	q := db.WithContext(ctx).Model(&User{}).Where("username = ?", username)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, utils.NewInternalError("Failed to check username", err)
	}
	return count == 0, nil
}

// EmailExists reports whether a profile already uses email.
func EmailExists(ctx context.Context, db *gorm.DB, email string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&User{}).Where("email = ?", utils.NormalizeEmail(email)).Count(&count).Error; err != nil {
		return false, utils.NewInternalError("Failed to check email", err)
	}
	return count > 0, nil
}

// SuggestUsername derives a free username from the local part of email,
// appending a counter until one is available.
func SuggestUsername(ctx context.Context, db *gorm.DB, email string) (string, error) {
	local, _, _ := strings.Cut(utils.NormalizeEmail(email), "@")
	base := slug.Make(local)
	if len(base) < 3 {
		base = "user-" + base
	}
	if len(base) > 40 {
		base = base[:40]
	}
	base = strings.Trim(base, "-")

	candidate := base
	for i := 1; i <= 1000; i++ {
		ok, err := IsUsernameAvailable(ctx, db, candidate, 0)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", utils.NewError(fiber.StatusConflict, "Could not derive a free username", fiber.Map{"email": email})
}

func profileKey(subject string) string {
	return "user:profile:" + subject
}

// CacheUser stores u under its subject. Cache failures are ignored.
func CacheUser(ctx context.Context, rclient *storage.RedisClient, u *User) {
	if rclient == nil {
		return
	}
	_ = rclient.SetJSON(ctx, profileKey(u.Subject), cachedUser{User: *u, Subject: u.Subject}, ProfileCacheTTL)
}

// InvalidateUser drops the cached profile for subject.
func InvalidateUser(ctx context.Context, rclient *storage.RedisClient, subject string) {
	if rclient == nil {
		return
	}
	_ = rclient.Del(ctx, profileKey(subject)).Err()
}
