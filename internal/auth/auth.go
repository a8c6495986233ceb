// Package auth issues and checks cookie sessions for the API.
package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/pkg/logger"
	storage "github.com/mnuddindev/otakushelf/pkg/redis"
	"gorm.io/gorm"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	localsSubject = "subject"
	localsUser    = "user"
)

// Session is a freshly issued token pair.
type Session struct {
	Subject       string
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
}

// Identity is what the provider knows about a signed-in subject.
type Identity struct {
	Subject string
	Email   string
}

// Provider is the identity service. It owns credentials and session tokens;
// the API only sees subjects.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	// DeleteAccount drops the credential for subject. Deleting an unknown
	// subject is not an error.
	DeleteAccount(ctx context.Context, subject string) error
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	CreateSession(ctx context.Context, subject string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Revoke(ctx context.Context, accessToken, refreshToken string) error
	Verify(ctx context.Context, accessToken string) (*Claims, error)
}

type Options struct {
	DB       *gorm.DB
	Rclient  *storage.RedisClient
	Logger   *logger.Logger
	Provider Provider
}

// SetSessionCookies writes both session cookies.
func SetSessionCookies(c *fiber.Ctx, s *Session, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     AccessCookie,
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.AccessExpiry,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    s.RefreshToken,
		Path:     "/",
		Expires:  s.RefreshExpiry,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(c *fiber.Ctx) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HTTPOnly: true,
		})
	}
}
