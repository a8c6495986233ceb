package v1

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/pkg/catalog"
	storage "github.com/mnuddindev/otakushelf/pkg/redis"
	"github.com/mnuddindev/otakushelf/pkg/utils"
)

const animeCacheTTL = time.Hour

func searchKey(q string, page, perPage int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d", strings.ToLower(strings.TrimSpace(q)), page, perPage)))
	return "anime:search:" + hex.EncodeToString(sum[:])
}

// SearchAnime proxies a catalog title search.
func SearchAnime(c *fiber.Ctx) error {
	ctx := c.UserContext()
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return utils.NewValidationError("q is required", "q")
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	perPage, err := queryInt(c, "per_page", 20)
	if err != nil {
		return err
	}
	if page < 1 {
		return utils.NewValidationError("page must be at least 1", "page")
	}
	if perPage < 1 || perPage > 50 {
		return utils.NewValidationError("per_page must be between 1 and 50", "per_page")
	}

	key := searchKey(q, page, perPage)
	var cached catalog.SearchResult
	if Redis != nil {
		if err := Redis.GetJSON(ctx, key, &cached); err == nil {
			return c.JSON(cached)
		} else if !errors.Is(err, storage.ErrCacheMiss) {
			Logger.Warn(ctx).WithFields("error", err).Logs("Catalog cache read failed")
		}
	}

	res, err := Catalog.Search(ctx, q, page, perPage)
	if err != nil {
		Logger.Error(ctx).WithFields("query", q, "error", err).Logs("Catalog search failed")
		return utils.WrapError(err, fiber.StatusServiceUnavailable, "Anime catalog is unavailable")
	}

	if Redis != nil {
		if err := Redis.SetJSON(ctx, key, res, animeCacheTTL); err != nil {
			Logger.Warn(ctx).WithFields("error", err).Logs("Catalog cache write failed")
		}
	}
	return c.JSON(res)
}

// GetAnime proxies a catalog lookup by id.
func GetAnime(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	key := fmt.Sprintf("anime:detail:%d", id)
	var cached catalog.Anime
	if Redis != nil {
		if err := Redis.GetJSON(ctx, key, &cached); err == nil {
			return c.JSON(cached)
		}
	}

	anime, err := Catalog.Get(ctx, int64(id))
	if errors.Is(err, catalog.ErrNotFound) {
		return utils.NewNotFoundError("Anime", id)
	}
	if err != nil {
		Logger.Error(ctx).WithFields("anime_id", id, "error", err).Logs("Catalog lookup failed")
		return utils.WrapError(err, fiber.StatusServiceUnavailable, "Anime catalog is unavailable")
	}

	if Redis != nil {
		_ = Redis.SetJSON(ctx, key, anime, animeCacheTTL)
	}
	return c.JSON(anime)
}
