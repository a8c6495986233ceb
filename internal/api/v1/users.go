package v1

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/internal/auth"
	userModel "github.com/mnuddindev/otakushelf/internal/models/user"
	watchlistModel "github.com/mnuddindev/otakushelf/internal/models/watchlist"
	"github.com/mnuddindev/otakushelf/pkg/utils"
)

type SignUpRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,min=8,max=128,password"`
	Username string  `json:"username" validate:"required,min=3,max=50,username"`
	FullName *string `json:"full_name" validate:"omitempty,max=100,notblank"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50,username"`
	FullName *string `json:"full_name" validate:"omitempty,max=100,notblank"`
}

// SignUp registers credentials with the provider, creates the profile and
// starts a session.
func SignUp(c *fiber.Ctx) error {
	ctx := c.UserContext()
	req := new(SignUpRequest)
	if err := parseAndValidate(c, req); err != nil {
		return err
	}
	req.Email = utils.NormalizeEmail(req.Email)

	available, err := userModel.IsUsernameAvailable(ctx, DB, req.Username, 0)
	if err != nil {
		return err
	}
	if !available {
		return utils.NewConflictError("Username '"+req.Username+"' is already taken", fiber.Map{"field": "username"})
	}
	taken, err := userModel.EmailExists(ctx, DB, req.Email)
	if err != nil {
		return err
	}
	if taken {
		return utils.NewConflictError("Email '"+req.Email+"' is already registered", fiber.Map{"field": "email"})
	}

	identity, err := Provider.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}

	user, err := userModel.NewUser(ctx, Redis, DB, identity.Subject, req.Username, identity.Email, userModel.WithFullName(req.FullName))
	if err != nil {
		Logger.Error(ctx).WithFields("subject", identity.Subject, "error", err).Logs("Profile creation failed after sign-up")
		if derr := Provider.DeleteAccount(context.WithoutCancel(ctx), identity.Subject); derr != nil {
			Logger.Error(ctx).WithFields("subject", identity.Subject, "error", derr).Logs("Failed to drop credential after profile failure")
		}
		return err
	}

	sess, err := Provider.CreateSession(ctx, identity.Subject)
	if err != nil {
		return err
	}
	auth.SetSessionCookies(c, sess, secureCookies())

	if EmailCfg.Enabled() {
		go func(email, username string) {
			mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			_ = utils.SendWelcomeEmail(mailCtx, EmailCfg, email, username, Logger)
		}(user.Email, user.Username)
	}

	Logger.Info(ctx).WithFields("user_id", user.ID, "username", user.Username).Logs("User registered successfully")
	return utils.Success(c).
		WithStatus(fiber.StatusCreated).
		WithMessage("User created successfully").
		WithData(fiber.Map{"user_id": user.ID, "username": user.Username}).
		Send()
}

// SignIn authenticates with the provider. A provider account without a
// profile gets one derived from the email address.
func SignIn(c *fiber.Ctx) error {
	ctx := c.UserContext()
	req := new(SignInRequest)
	if err := parseAndValidate(c, req); err != nil {
		return err
	}

	identity, err := Provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		Logger.Warn(ctx).WithFields("email", utils.NormalizeEmail(req.Email)).Logs("Sign-in failed")
		return err
	}

	user, err := userModel.GetUserBySubject(ctx, Redis, DB, identity.Subject)
	if err != nil {
		if !utils.IsStatus(err, fiber.StatusNotFound) {
			return err
		}
		username, serr := userModel.SuggestUsername(ctx, DB, identity.Email)
		if serr != nil {
			return serr
		}
		user, err = userModel.NewUser(ctx, Redis, DB, identity.Subject, username, identity.Email)
		if err != nil {
			return err
		}
		Logger.Info(ctx).WithFields("user_id", user.ID, "username", username).Logs("Profile created on first sign-in")
	}

	sess, err := Provider.CreateSession(ctx, identity.Subject)
	if err != nil {
		return err
	}
	auth.SetSessionCookies(c, sess, secureCookies())

	Logger.Info(ctx).WithFields("user_id", user.ID).Logs("User signed in")
	return utils.Success(c).
		WithMessage("Sign in successful").
		WithData(fiber.Map{"user_id": user.ID, "username": user.Username}).
		Send()
}

// SignOut revokes the current tokens and clears the cookies. It succeeds even
// without a session.
func SignOut(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := Provider.Revoke(ctx, auth.AccessToken(c), c.Cookies(auth.RefreshCookie)); err != nil {
		Logger.Error(ctx).WithFields("error", err).Logs("Failed to revoke session")
		return err
	}
	auth.ClearSessionCookies(c)

	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	c.Set("Pragma", "no-cache")
	return utils.Success(c).WithMessage("Signed out successfully").Send()
}

// RefreshSession exchanges the refresh cookie for a new token pair.
func RefreshSession(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess, err := Provider.Refresh(ctx, c.Cookies(auth.RefreshCookie))
	if err != nil {
		auth.ClearSessionCookies(c)
		return err
	}
	auth.SetSessionCookies(c, sess, secureCookies())
	return utils.Success(c).WithMessage("Session refreshed").Send()
}

// GetMe returns the caller's profile with live watchlist count.
func GetMe(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)
	count, err := watchlistModel.CountItems(c.UserContext(), DB, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(user.ToProfile(count, time.Now()))
}

// UpdateMe changes username and/or full name.
func UpdateMe(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := auth.CurrentUser(c)
	req := new(UpdateProfileRequest)
	if err := parseAndValidate(c, req); err != nil {
		return err
	}

	var opts []userModel.UserOption
	if req.Username != nil && *req.Username != user.Username {
		available, err := userModel.IsUsernameAvailable(ctx, DB, *req.Username, user.ID)
		if err != nil {
			return err
		}
		if !available {
			return utils.NewError(fiber.StatusBadRequest, "Username already taken", fiber.Map{"field": "username"})
		}
		opts = append(opts, userModel.WithUsername(*req.Username))
	}
	if req.FullName != nil {
		opts = append(opts, userModel.WithFullName(req.FullName))
	}

	updated, err := userModel.UpdateUser(ctx, Redis, DB, user.ID, opts...)
	if err != nil {
		return err
	}
	Logger.Info(ctx).WithFields("user_id", user.ID).Logs("Profile updated")
	return c.JSON(updated)
}

// DeactivateMe turns the account off and ends the session.
func DeactivateMe(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := auth.CurrentUser(c)
	if err := userModel.DeactivateUser(ctx, Redis, DB, user.ID); err != nil {
		return err
	}
	if err := Provider.Revoke(ctx, auth.AccessToken(c), c.Cookies(auth.RefreshCookie)); err != nil {
		Logger.Warn(ctx).WithFields("error", err).Logs("Failed to revoke session of deactivated user")
	}
	auth.ClearSessionCookies(c)

	Logger.Info(ctx).WithFields("user_id", user.ID).Logs("Account deactivated")
	return utils.Success(c).WithMessage("Account deactivated successfully").Send()
}

// CheckUsername reports whether a username can be claimed.
func CheckUsername(c *fiber.Ctx) error {
	username := c.Params("username")
	if err := Validator.ValidateVar(username, "min=3,max=50,username"); err != nil {
		return c.JSON(fiber.Map{
			"username":  username,
			"available": false,
			"message":   "Username must be 3-50 characters of letters, numbers, underscores or hyphens",
		})
	}

	available, err := userModel.IsUsernameAvailable(c.UserContext(), DB, username, 0)
	if err != nil {
		return err
	}
	message := "Username is available"
	if !available {
		message = "Username is already taken"
	}
	return c.JSON(fiber.Map{
		"username":  username,
		"available": available,
		"message":   message,
	})
}
