package v1

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/internal/auth"
	"github.com/mnuddindev/otakushelf/internal/config"
	"github.com/mnuddindev/otakushelf/pkg/catalog"
	"github.com/mnuddindev/otakushelf/pkg/logger"
	storage "github.com/mnuddindev/otakushelf/pkg/redis"
	"github.com/mnuddindev/otakushelf/pkg/utils"
	"gorm.io/gorm"
)

// AnimeCatalog is the subset of the catalog client the handlers need.
type AnimeCatalog interface {
	Search(ctx context.Context, query string, page, perPage int) (*catalog.SearchResult, error)
	Get(ctx context.Context, id int64) (*catalog.Anime, error)
}

var (
	DB        *gorm.DB
	Redis     *storage.RedisClient
	Logger    *logger.Logger
	Provider  auth.Provider
	Catalog   AnimeCatalog
	AppConfig *config.Config
	EmailCfg  utils.EmailConfig
	Validator = utils.NewValidator()
	StartedAt = time.Now()
)

func secureCookies() bool {
	return AppConfig != nil && AppConfig.IsProduction()
}

// paramID parses a positive integer path parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, utils.NewValidationError(name+" must be a positive integer", name)
	}
	return uint(id), nil
}

// queryInt parses an optional integer query parameter, returning def when absent.
func queryInt(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.NewValidationError(name+" must be an integer", name)
	}
	return n, nil
}

// parseAndValidate decodes the body into req and runs the validator.
func parseAndValidate(c *fiber.Ctx, req any) error {
	if err := utils.BodyParser(c, req); err != nil {
		Logger.Warn(c.UserContext()).WithFields("error", err).Logs("Failed to parse request body")
		return err
	}
	if verr := Validator.Validate(req); verr != nil {
		Logger.Warn(c.UserContext()).WithFields("errors", verr.Errors).Logs("Validation failed")
		return verr.Err()
	}
	return nil
}
