package auth

import (
	"github.com/gofiber/fiber/v2"
	userModel "github.com/mnuddindev/otakushelf/internal/models/user"
	"github.com/mnuddindev/otakushelf/pkg/utils"
)

// RequireProfile loads the profile of the session subject. It must run after
// RequireSession. No profile is a 404, a deactivated one a 403.
func RequireProfile(opt Options) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		subject := Subject(c)
		if subject == "" {
			return utils.NewUnauthorizedError("Authentication required")
		}

		u, err := userModel.GetUserBySubject(ctx, opt.Rclient, opt.DB, subject)
		if err != nil {
			if utils.IsStatus(err, fiber.StatusNotFound) {
				opt.Logger.Warn(ctx).WithFields("subject", subject).Logs("Session has no profile")
				return utils.NewNotFoundError("User profile", nil)
			}
			return err
		}
		if !u.IsActive {
			opt.Logger.Warn(ctx).WithFields("user_id", u.ID).Logs("Inactive user attempted access")
			return utils.NewForbiddenError("User account is inactive")
		}

		c.Locals(localsUser, u)
		return c.Next()
	}
}

// CurrentUser returns the profile set by RequireProfile.
func CurrentUser(c *fiber.Ctx) *userModel.User {
	u, _ := c.Locals(localsUser).(*userModel.User)
	return u
}
