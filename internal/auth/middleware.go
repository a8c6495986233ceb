package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/pkg/logger"
	"github.com/mnuddindev/otakushelf/pkg/utils"
)

// RequireSession rejects requests without a valid access token. It never
// refreshes on the caller's behalf: an expired token is a 401 and the client
// is expected to call /auth/session/refresh.
func RequireSession(opt Options) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		token := AccessToken(c)
		if token == "" {
			return utils.NewUnauthorizedError("Authentication required")
		}

		claims, err := opt.Provider.Verify(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, ErrExpiredToken):
				opt.Logger.Debug(ctx).Logs("Access token expired")
				return utils.NewUnauthorizedError("try refresh token")
			case errors.Is(err, ErrRevokedToken):
				opt.Logger.Warn(ctx).Logs("Attempted use of revoked access token")
				return utils.NewUnauthorizedError("Session has been revoked")
			case errors.Is(err, ErrInvalidToken):
				opt.Logger.Warn(ctx).Logs("Invalid access token")
				return utils.NewUnauthorizedError("Invalid session")
			default:
				return err
			}
		}

		c.Locals(localsSubject, claims.Subject)
		c.SetUserContext(logger.WithUserID(ctx, claims.Subject))
		return c.Next()
	}
}

// AccessToken reads the access token from its cookie or a Bearer header.
func AccessToken(c *fiber.Ctx) string {
	if token := c.Cookies(AccessCookie); token != "" {
		return token
	}
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Subject returns the session subject set by RequireSession.
func Subject(c *fiber.Ctx) string {
	s, _ := c.Locals(localsSubject).(string)
	return s
}
