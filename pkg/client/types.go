package client

import "time"

// WatchStatus is where an anime sits on a list.
type WatchStatus string

const (
	PlanToWatch WatchStatus = "plan_to_watch"
	Watching    WatchStatus = "watching"
	Completed   WatchStatus = "completed"
	OnHold      WatchStatus = "on_hold"
	Dropped     WatchStatus = "dropped"
)

// Statuses lists every status in display order.
var Statuses = []WatchStatus{PlanToWatch, Watching, Completed, OnHold, Dropped}

func (s WatchStatus) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Item is one watchlist row as the server renders it.
type Item struct {
	ID                uint        `json:"id"`
	AnimeID           int64       `json:"anime_id"`
	AnimeTitle        string      `json:"anime_title"`
	AnimePictureURL   *string     `json:"anime_picture_url"`
	AnimeScore        *float64    `json:"anime_score"`
	Status            WatchStatus `json:"status"`
	Notes             *string     `json:"notes"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	DaysSinceAdded    int         `json:"days_since_added"`
	IsRecentlyUpdated bool        `json:"is_recently_updated"`
}

// Clone returns a copy that shares no pointers with it.
func (it Item) Clone() Item {
	out := it
	if it.AnimePictureURL != nil {
		v := *it.AnimePictureURL
		out.AnimePictureURL = &v
	}
	if it.AnimeScore != nil {
		v := *it.AnimeScore
		out.AnimeScore = &v
	}
	if it.Notes != nil {
		v := *it.Notes
		out.Notes = &v
	}
	return out
}

// Page is one list response.
type Page struct {
	Items          []Item              `json:"items"`
	TotalCount     int                 `json:"total_count"`
	StatusCounts   map[WatchStatus]int `json:"status_counts"`
	CompletionRate float64             `json:"completion_rate"`
	Skip           int                 `json:"skip"`
	Limit          int                 `json:"limit"`
}

// ListParams filters and pages a list call. Zero values use server defaults.
type ListParams struct {
	Status WatchStatus
	Skip   int
	Limit  int
}

type NewItem struct {
	AnimeID         int64       `json:"anime_id"`
	AnimeTitle      string      `json:"anime_title"`
	AnimePictureURL *string     `json:"anime_picture_url,omitempty"`
	AnimeScore      *float64    `json:"anime_score,omitempty"`
	Status          WatchStatus `json:"status,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
}

// ItemUpdate is a partial update; nil fields are left alone.
type ItemUpdate struct {
	Status     *WatchStatus `json:"status,omitempty"`
	Notes      *string      `json:"notes,omitempty"`
	AnimeScore *float64     `json:"anime_score,omitempty"`
}

type BulkResult struct {
	Updated   int `json:"updated"`
	Requested int `json:"requested"`
}

// Profile is the signed-in user's application profile.
type Profile struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FullName       *string   `json:"full_name"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	WatchlistCount int       `json:"watchlist_count"`
	DisplayName    string    `json:"display_name"`
	AccountAgeDays int       `json:"account_age_days"`
}

type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

type UsernameCheck struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

type SignUpRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username string  `json:"username"`
	FullName *string `json:"full_name,omitempty"`
}
