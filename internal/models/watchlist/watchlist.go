package models

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/pkg/utils"
	"gorm.io/gorm"
)

// WatchlistItem is one anime saved by one user. (UserID, AnimeID) is unique.
type WatchlistItem struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	UserID          uint        `gorm:"not null;uniqueIndex:uniq_user_anime;index" json:"-"`
	AnimeID         int64       `gorm:"not null;uniqueIndex:uniq_user_anime" json:"anime_id"`
	AnimeTitle      string      `gorm:"size:200;not null" json:"anime_title"`
	AnimePictureURL *string     `gorm:"type:text" json:"anime_picture_url"`
	AnimeScore      *float64    `json:"anime_score"`
	Status          WatchStatus `gorm:"size:20;not null;default:'plan_to_watch';index" json:"status"`
	Notes           *string     `gorm:"size:1000" json:"notes"`
	CreatedAt       time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WatchlistItem) TableName() string {
	return "watchlist_items"
}

// ItemResponse adds read-time fields to a row.
type ItemResponse struct {
	WatchlistItem
	DaysSinceAdded    int  `json:"days_since_added"`
	IsRecentlyUpdated bool `json:"is_recently_updated"`
}

// Response renders w as seen at now.
func (w *WatchlistItem) Response(now time.Time) ItemResponse {
	return ItemResponse{
		WatchlistItem:     *w,
		DaysSinceAdded:    int(now.Sub(w.CreatedAt).Hours() / 24),
		IsRecentlyUpdated: now.Sub(w.UpdatedAt) < 24*time.Hour,
	}
}

// NewItem carries the fields accepted on create.
type NewItem struct {
	AnimeID         int64
	AnimeTitle      string
	AnimePictureURL *string
	AnimeScore      *float64
	Status          WatchStatus
	Notes           *string
}

// ListFilter selects a page of a user's list. A nil Status means all.
type ListFilter struct {
	Status *WatchStatus
	Skip   int
	Limit  int
}

// ListResult is a page plus the whole-list aggregates.
type ListResult struct {
	Items        []WatchlistItem
	TotalCount   int64
	StatusCounts StatusCounts
}

// ItemOption mutates an item during a partial update.
type ItemOption func(*WatchlistItem)

// DuplicateItemError reports an anime already on the user's list.
func DuplicateItemError(animeID int64) *utils.CustomError {
	return utils.NewConflictError(
		"Anime with ID "+itoa(animeID)+" is already in your watchlist",
		fiber.Map{"anime_id": animeID},
	)
}

func itemNotFound(id uint) *utils.CustomError {
	return utils.NewNotFoundError("Watchlist item", id)
}

// CreateItem adds an anime to userID's list. The pre-check gives a clean
// conflict; the unique index catches the race the pre-check cannot.
func CreateItem(ctx context.Context, db *gorm.DB, userID uint, in NewItem) (*WatchlistItem, error) {
	existing, err := GetItemByAnimeID(ctx, db, userID, in.AnimeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, DuplicateItemError(in.AnimeID)
	}

	status := in.Status
	if status == "" {
		status = StatusPlanToWatch
	}

	item := &WatchlistItem{
		UserID:          userID,
		AnimeID:         in.AnimeID,
		AnimeTitle:      in.AnimeTitle,
		AnimePictureURL: in.AnimePictureURL,
		AnimeScore:      in.AnimeScore,
		Status:          status,
		Notes:           in.Notes,
	}
	if err := db.WithContext(ctx).Create(item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, DuplicateItemError(in.AnimeID)
		}
		return nil, utils.NewInternalError("Failed to add anime to watchlist", err)
	}
	return item, nil
}

// ListItems returns a page of userID's items, newest first.
func ListItems(ctx context.Context, db *gorm.DB, userID uint, f ListFilter) (*ListResult, error) {
	base := db.WithContext(ctx).Model(&WatchlistItem{}).Where("user_id = ?", userID)
	if f.Status != nil {
		base = base.Where("status = ?", *f.Status)
	}
	q := base.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, utils.NewInternalError("Failed to count watchlist", err)
	}

	items := make([]WatchlistItem, 0, f.Limit)
	if err := q.Order("created_at DESC").Order("id DESC").Offset(f.Skip).Limit(f.Limit).Find(&items).Error; err != nil {
		return nil, utils.NewInternalError("Failed to load watchlist", err)
	}

	counts, err := CountByStatus(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	return &ListResult{Items: items, TotalCount: total, StatusCounts: counts}, nil
}

// CountByStatus groups the whole list by status, zero-filling absent ones.
func CountByStatus(ctx context.Context, db *gorm.DB, userID uint) (StatusCounts, error) {
	var rows []struct {
		Status WatchStatus
		Count  int64
	}
	err := db.WithContext(ctx).Model(&WatchlistItem{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, utils.NewInternalError("Failed to count watchlist by status", err)
	}

	counts := ZeroStatusCounts()
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// CountItems returns the size of userID's whole list.
func CountItems(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&WatchlistItem{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, utils.NewInternalError("Failed to count watchlist", err)
	}
	return n, nil
}

// GetItem loads one owned item. Items owned by others are reported as missing.
func GetItem(ctx context.Context, db *gorm.DB, userID, itemID uint) (*WatchlistItem, error) {
	var item WatchlistItem
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, itemNotFound(itemID)
	}
	if err != nil {
		return nil, utils.NewInternalError("Failed to load watchlist item", err)
	}
	return &item, nil
}

// GetItemByAnimeID returns nil, nil when the anime is not on the list.
func GetItemByAnimeID(ctx context.Context, db *gorm.DB, userID uint, animeID int64) (*WatchlistItem, error) {
	var item WatchlistItem
	err := db.WithContext(ctx).Where("user_id = ? AND anime_id = ?", userID, animeID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewInternalError("Failed to check watchlist", err)
	}
	return &item, nil
}

// UpdateItem applies opts to an owned item and saves it, bumping updated_at.
func UpdateItem(ctx context.Context, db *gorm.DB, userID, itemID uint, opts ...ItemOption) (*WatchlistItem, error) {
	item, err := GetItem(ctx, db, userID, itemID)
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(item)
	}

	if err := db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, utils.NewInternalError("Failed to update watchlist item", err)
	}
	return item, nil
}

// DeleteItem hard-deletes an owned item.
func DeleteItem(ctx context.Context, db *gorm.DB, userID, itemID uint) error {
	res := db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&WatchlistItem{})
	if res.Error != nil {
		return utils.NewInternalError("Failed to remove watchlist item", res.Error)
	}
	if res.RowsAffected == 0 {
		return itemNotFound(itemID)
	}
	return nil
}

// BulkUpdateStatus sets status on every owned id in ids. Rows are updated one
// at a time with no surrounding transaction, so a failure part way leaves the
// earlier rows changed. Ids the user does not own are skipped. It returns a
// 404 when none of ids is owned.
func BulkUpdateStatus(ctx context.Context, db *gorm.DB, userID uint, ids []uint, status WatchStatus) (int, error) {
	var owned []WatchlistItem
	if err := db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&owned).Error; err != nil {
		return 0, utils.NewInternalError("Failed to load watchlist items", err)
	}
	if len(owned) == 0 {
		return 0, utils.NewNotFoundError("Watchlist items", nil)
	}

	updated := 0
	var errs []error
	for i := range owned {
		owned[i].Status = status
		if err := db.WithContext(ctx).Save(&owned[i]).Error; err != nil {
			errs = append(errs, err)
			continue
		}
		updated++
	}
	if updated == 0 && len(errs) > 0 {
		return 0, utils.NewInternalError("Failed to update watchlist items", errors.Join(errs...))
	}
	return updated, nil
}
