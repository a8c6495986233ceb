package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	userModel "github.com/mnuddindev/otakushelf/internal/models/user"
	"github.com/mnuddindev/otakushelf/pkg/logger"
	storage "github.com/mnuddindev/otakushelf/pkg/redis"
	"github.com/mnuddindev/otakushelf/pkg/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// LocalProvider keeps bcrypt credentials in the database and session state in Redis.
type LocalProvider struct {
	db         *gorm.DB
	rclient    *storage.RedisClient
	tokens     *TokenIssuer
	refreshTTL time.Duration
	log        *logger.Logger
}

func NewLocalProvider(db *gorm.DB, rclient *storage.RedisClient, tokens *TokenIssuer, refreshTTL time.Duration, log *logger.Logger) *LocalProvider {
	return &LocalProvider{db: db, rclient: rclient, tokens: tokens, refreshTTL: refreshTTL, log: log}
}

func refreshKey(token string) string { return "refresh:" + token }
func blacklistKey(jti string) string { return "blacklist:access:" + jti }

// SignUp registers a credential and returns its new subject.
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := userModel.NewCredential(ctx, p.db, email, password)
	if err != nil {
		return nil, err
	}
	p.log.Info(ctx).WithFields("subject", cred.Subject).Logs("Credential registered")
	return &Identity{Subject: cred.Subject, Email: cred.Email}, nil
}

func (p *LocalProvider) DeleteAccount(ctx context.Context, subject string) error {
	if err := userModel.DeleteCredential(ctx, p.db, subject); err != nil {
		return err
	}
	p.log.Info(ctx).WithFields("subject", subject).Logs("Credential deleted")
	return nil
}

// SignIn checks email and password. Unknown email and wrong password look the same.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := userModel.GetCredentialByEmail(ctx, p.db, email)
	if err != nil {
		return nil, err
	}
	if cred == nil || utils.ComparePasswords(cred.PasswordHash, password) != nil {
		return nil, utils.NewUnauthorizedError("Invalid email or password")
	}
	return &Identity{Subject: cred.Subject, Email: cred.Email}, nil
}

// CreateSession issues an access token and stores a refresh token for subject.
func (p *LocalProvider) CreateSession(ctx context.Context, subject string) (*Session, error) {
	access, claims, err := p.tokens.GenerateAccessToken(subject)
	if err != nil {
		return nil, utils.NewInternalError("Failed to issue access token", err)
	}

	refresh := GenerateRefreshToken()
	if err := p.rclient.Set(ctx, refreshKey(refresh), subject, p.refreshTTL).Err(); err != nil {
		return nil, utils.NewInternalError("Failed to store refresh token", err)
	}

	return &Session{
		Subject:       subject,
		AccessToken:   access,
		AccessExpiry:  claims.ExpiresAt.Time,
		RefreshToken:  refresh,
		RefreshExpiry: time.Now().Add(p.refreshTTL),
	}, nil
}

// Refresh consumes refreshToken and issues a new pair. A token can be used once.
func (p *LocalProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, utils.NewUnauthorizedError("Refresh token missing")
	}

	subject, err := p.rclient.GetDel(ctx, refreshKey(refreshToken)).Result()
	if errors.Is(err, redis.Nil) || subject == "" {
		p.log.Warn(ctx).Logs("Invalid or expired refresh token")
		return nil, utils.NewUnauthorizedError("Invalid or expired refresh token")
	}
	if err != nil {
		return nil, utils.NewInternalError("Failed to read refresh token", err)
	}

	sess, err := p.CreateSession(ctx, subject)
	if err != nil {
		return nil, err
	}
	p.log.Info(ctx).WithFields("subject", subject).Logs("Tokens refreshed")
	return sess, nil
}

// Revoke blacklists the access token for the rest of its lifetime and drops
// the refresh token. Either token may be empty.
func (p *LocalProvider) Revoke(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if claims, err := p.tokens.ParseIgnoringExpiry(accessToken); err == nil && claims.ExpiresAt != nil {
			if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
				if err := p.rclient.Set(ctx, blacklistKey(claims.ID), "1", ttl).Err(); err != nil {
					return utils.NewInternalError("Failed to revoke access token", err)
				}
			}
		}
	}
	if refreshToken != "" {
		if err := p.rclient.Del(ctx, refreshKey(refreshToken)).Err(); err != nil {
			return utils.NewInternalError("Failed to revoke refresh token", err)
		}
	}
	return nil
}

// Verify validates accessToken and rejects blacklisted ones.
func (p *LocalProvider) Verify(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := p.tokens.VerifyToken(accessToken)
	if err != nil {
		return nil, err
	}
	n, err := p.rclient.Exists(ctx, blacklistKey(claims.ID)).Result()
	if err != nil {
		return nil, utils.NewError(fiber.StatusServiceUnavailable, "Session store unavailable")
	}
	if n > 0 {
		return nil, ErrRevokedToken
	}
	return claims, nil
}
