package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// WatchlistAPI is one method per watchlist route. The Store depends on this
// rather than on *Client.
type WatchlistAPI interface {
	List(ctx context.Context, p ListParams) (*Page, error)
	Create(ctx context.Context, n NewItem) (*Item, error)
	Get(ctx context.Context, id uint) (*Item, error)
	Update(ctx context.Context, id uint, u ItemUpdate) (*Item, error)
	Delete(ctx context.Context, id uint) error
	GetByAnimeID(ctx context.Context, animeID int64) (*Item, error)
	BulkUpdateStatus(ctx context.Context, ids []uint, status WatchStatus) (*BulkResult, error)
}

// Watchlist is the REST binding of WatchlistAPI.
type Watchlist struct {
	c *Client
}

func (c *Client) Watchlist() *Watchlist {
	return &Watchlist{c: c}
}

func (w *Watchlist) List(ctx context.Context, p ListParams) (*Page, error) {
	q := url.Values{}
	if p.Status != "" {
		q.Set("status_filter", string(p.Status))
	}
	if p.Skip > 0 {
		q.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	page := new(Page)
	if err := w.c.do(ctx, http.MethodGet, "/api/v1/watchlist", q, nil, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (w *Watchlist) Create(ctx context.Context, n NewItem) (*Item, error) {
	item := new(Item)
	if err := w.c.do(ctx, http.MethodPost, "/api/v1/watchlist", nil, n, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (w *Watchlist) Get(ctx context.Context, id uint) (*Item, error) {
	item := new(Item)
	if err := w.c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/watchlist/%d", id), nil, nil, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (w *Watchlist) Update(ctx context.Context, id uint, u ItemUpdate) (*Item, error) {
	item := new(Item)
	if err := w.c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/watchlist/%d", id), nil, u, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (w *Watchlist) Delete(ctx context.Context, id uint) error {
	return w.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/watchlist/%d", id), nil, nil, nil)
}

// GetByAnimeID returns nil, nil when the anime is not on the list.
func (w *Watchlist) GetByAnimeID(ctx context.Context, animeID int64) (*Item, error) {
	var item *Item
	if err := w.c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/watchlist/anime/%d", animeID), nil, nil, &item); err != nil {
		return nil, err
	}
	return item, nil
}

func (w *Watchlist) BulkUpdateStatus(ctx context.Context, ids []uint, status WatchStatus) (*BulkResult, error) {
	res := new(BulkResult)
	body := map[string]any{"item_ids": ids, "new_status": status}
	if err := w.c.doData(ctx, http.MethodPost, "/api/v1/watchlist/bulk", body, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	p := new(Profile)
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/me", nil, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateMe changes the username and/or full name. The returned profile has
// no watchlist count.
func (c *Client) UpdateMe(ctx context.Context, u ProfileUpdate) (*Profile, error) {
	p := new(Profile)
	if err := c.do(ctx, http.MethodPut, "/api/v1/users/me", nil, u, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) DeactivateMe(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/users/me", nil, nil, nil)
}

func (c *Client) CheckUsername(ctx context.Context, username string) (*UsernameCheck, error) {
	res := new(UsernameCheck)
	path := "/api/v1/users/check-username/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, res); err != nil {
		return nil, err
	}
	return res, nil
}
