package v1

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/internal/auth"
	watchlistModel "github.com/mnuddindev/otakushelf/internal/models/watchlist"
	"github.com/mnuddindev/otakushelf/pkg/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type AddItemRequest struct {
	AnimeID         int64    `json:"anime_id" validate:"required,gt=0"`
	AnimeTitle      string   `json:"anime_title" validate:"required,min=1,max=200,notblank"`
	AnimePictureURL *string  `json:"anime_picture_url" validate:"omitempty,http_url"`
	AnimeScore      *float64 `json:"anime_score" validate:"omitempty,gte=0,lte=10"`
	Status          string   `json:"status" validate:"omitempty,oneof=plan_to_watch watching completed on_hold dropped"`
	Notes           *string  `json:"notes" validate:"omitempty,max=1000"`
}

type UpdateItemRequest struct {
	Status     *string  `json:"status" validate:"omitempty,oneof=plan_to_watch watching completed on_hold dropped"`
	Notes      *string  `json:"notes" validate:"omitempty,max=1000"`
	AnimeScore *float64 `json:"anime_score" validate:"omitempty,gte=0,lte=10"`
}

type BulkUpdateRequest struct {
	ItemIDs   []uint `json:"item_ids" validate:"required,min=1,max=100,dive,gt=0"`
	NewStatus string `json:"new_status" validate:"required,oneof=plan_to_watch watching completed on_hold dropped"`
}

// WatchlistResponse is one page of the list plus whole-list aggregates.
type WatchlistResponse struct {
	Items          []watchlistModel.ItemResponse       `json:"items"`
	TotalCount     int64                               `json:"total_count"`
	StatusCounts   map[watchlistModel.WatchStatus]int64 `json:"status_counts"`
	CompletionRate float64                             `json:"completion_rate"`
	Skip           int                                 `json:"skip"`
	Limit          int                                 `json:"limit"`
}

// ListWatchlist returns the caller's list, newest first.
func ListWatchlist(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := auth.CurrentUser(c)

	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		return err
	}
	if skip < 0 {
		return utils.NewValidationError("skip must be greater than or equal to 0", "skip")
	}
	if limit < 1 || limit > maxPageSize {
		return utils.NewValidationError("limit must be between 1 and 100", "limit")
	}

	filter := watchlistModel.ListFilter{Skip: skip, Limit: limit}
	raw := c.Query("status_filter", c.Query("status"))
	if raw != "" {
		st, err := watchlistModel.ParseWatchStatus(raw)
		if err != nil {
			return utils.NewValidationError("status_filter must be one of: plan_to_watch watching completed on_hold dropped", "status_filter")
		}
		filter.Status = &st
	}

	res, err := watchlistModel.ListItems(ctx, DB, user.ID, filter)
	if err != nil {
		return err
	}

	now := time.Now()
	items := make([]watchlistModel.ItemResponse, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, res.Items[i].Response(now))
	}

	Logger.Debug(ctx).WithFields("user_id", user.ID, "count", len(items), "total", res.TotalCount).Logs("Watchlist listed")
	return c.JSON(WatchlistResponse{
		Items:          items,
		TotalCount:     res.TotalCount,
		StatusCounts:   res.StatusCounts,
		CompletionRate: res.StatusCounts.CompletionRate(),
		Skip:           skip,
		Limit:          limit,
	})
}

// AddToWatchlist creates an item; a second add of the same anime is a 409.
func AddToWatchlist(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := auth.CurrentUser(c)
	req := new(AddItemRequest)
	if err := parseAndValidate(c, req); err != nil {
		return err
	}

	item, err := watchlistModel.CreateItem(ctx, DB, user.ID, watchlistModel.NewItem{
		AnimeID:         req.AnimeID,
		AnimeTitle:      req.AnimeTitle,
		AnimePictureURL: req.AnimePictureURL,
		AnimeScore:      req.AnimeScore,
		Status:          watchlistModel.WatchStatus(req.Status),
		Notes:           req.Notes,
	})
	if err != nil {
		if utils.IsStatus(err, fiber.StatusConflict) {
			Logger.Warn(ctx).WithFields("user_id", user.ID, "anime_id", req.AnimeID).Logs("Duplicate watchlist item")
		}
		return err
	}

	Logger.Info(ctx).WithFields("user_id", user.ID, "anime_id", item.AnimeID, "item_id", item.ID).Logs("Anime added to watchlist")
	return c.Status(fiber.StatusCreated).JSON(item.Response(time.Now()))
}

// GetWatchlistItem returns one owned item.
func GetWatchlistItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	item, err := watchlistModel.GetItem(c.UserContext(), DB, auth.CurrentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(item.Response(time.Now()))
}

// UpdateWatchlistItem applies a partial update to one owned item.
func UpdateWatchlistItem(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := auth.CurrentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	req := new(UpdateItemRequest)
	if err := parseAndValidate(c, req); err != nil {
		return err
	}

	var opts []watchlistModel.ItemOption
	if req.Status != nil {
		opts = append(opts, watchlistModel.WithStatus(watchlistModel.WatchStatus(*req.Status)))
	}
	if req.Notes != nil {
		opts = append(opts, watchlistModel.WithNotes(*req.Notes))
	}
	if req.AnimeScore != nil {
		opts = append(opts, watchlistModel.WithAnimeScore(*req.AnimeScore))
	}

	item, err := watchlistModel.UpdateItem(ctx, DB, user.ID, id, opts...)
	if err != nil {
		return err
	}
	Logger.Info(ctx).WithFields("user_id", user.ID, "item_id", id).Logs("Watchlist item updated")
	return c.JSON(item.Response(time.Now()))
}

// DeleteWatchlistItem removes one owned item.
func DeleteWatchlistItem(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := auth.CurrentUser(c)
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := watchlistModel.DeleteItem(ctx, DB, user.ID, id); err != nil {
		return err
	}
	Logger.Info(ctx).WithFields("user_id", user.ID, "item_id", id).Logs("Anime removed from watchlist")
	return utils.Success(c).WithMessage("Anime removed from watchlist").Send()
}

// GetByAnimeID answers "is this anime on my list?" with the item or null.
func GetByAnimeID(c *fiber.Ctx) error {
	raw, err := paramID(c, "animeId")
	if err != nil {
		return err
	}
	item, err := watchlistModel.GetItemByAnimeID(c.UserContext(), DB, auth.CurrentUser(c).ID, int64(raw))
	if err != nil {
		return err
	}
	if item == nil {
		return c.JSON(nil)
	}
	return c.JSON(item.Response(time.Now()))
}

// BulkUpdateStatus moves several owned items to one status.
func BulkUpdateStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := auth.CurrentUser(c)

	req := new(BulkUpdateRequest)
	if len(c.Body()) > 0 {
		if err := utils.BodyParser(c, req); err != nil {
			return err
		}
	}
	if req.NewStatus == "" {
		req.NewStatus = c.Query("new_status")
	}
	if verr := Validator.Validate(req); verr != nil {
		return verr.Err()
	}

	updated, err := watchlistModel.BulkUpdateStatus(ctx, DB, user.ID, req.ItemIDs, watchlistModel.WatchStatus(req.NewStatus))
	if err != nil {
		return err
	}

	Logger.Info(ctx).WithFields("user_id", user.ID, "updated", updated, "requested", len(req.ItemIDs)).Logs("Bulk status update")
	return utils.Success(c).
		WithMessage("Updated status for watchlist items").
		WithData(fiber.Map{"updated": updated, "requested": len(req.ItemIDs)}).
		Send()
}
