// Package catalog queries the public AniList GraphQL API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/machinebox/graphql"
)

// DefaultEndpoint is the public AniList GraphQL endpoint.
const DefaultEndpoint = "https://graphql.anilist.co"

var ErrNotFound = errors.New("anime not found")

// Anime is the catalog view of one AniList media entry.
type Anime struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	CoverImage  string   `json:"cover_image,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	Genres      []string `json:"genres"`
	Status      string   `json:"status,omitempty"`
	Episodes    *int     `json:"episodes,omitempty"`
	Description string   `json:"description,omitempty"`
}

// PageInfo mirrors AniList pagination.
type PageInfo struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"current_page"`
	LastPage    int  `json:"last_page"`
	HasNextPage bool `json:"has_next_page"`
	PerPage     int  `json:"per_page"`
}

type SearchResult struct {
	PageInfo PageInfo `json:"page_info"`
	Media    []Anime  `json:"media"`
}

// Client is safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
	gql        *graphql.Client
	attempts   uint
	delay      time.Duration
}

type Option func(*Client)

// WithHTTPClient swaps the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the attempt count and the base backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// New builds a client for endpoint; an empty endpoint means AniList.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		attempts:   3,
		delay:      300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gql = graphql.NewClient(c.endpoint, graphql.WithHTTPClient(c.httpClient))
	return c
}

const mediaFields = `
  id
  title { romaji english }
  coverImage { large }
  averageScore
  genres
  status
  episodes
  description(asHtml: false)
`

var searchQuery = `
query ($search: String, $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { total currentPage lastPage hasNextPage perPage }
    media(search: $search, type: ANIME) {` + mediaFields + `}
  }
}`

var getQuery = `
query ($id: Int) {
  Media(id: $id, type: ANIME) {` + mediaFields + `}
}`

type mediaNode struct {
	ID    int64 `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
	} `json:"title"`
	CoverImage struct {
		Large string `json:"large"`
	} `json:"coverImage"`
	AverageScore *int     `json:"averageScore"`
	Genres       []string `json:"genres"`
	Status       string   `json:"status"`
	Episodes     *int     `json:"episodes"`
	Description  string   `json:"description"`
}

func (m mediaNode) toAnime() Anime {
	title := m.Title.English
	if title == "" {
		title = m.Title.Romaji
	}
	a := Anime{
		ID:          m.ID,
		Title:       title,
		CoverImage:  m.CoverImage.Large,
		Genres:      m.Genres,
		Status:      m.Status,
		Episodes:    m.Episodes,
		Description: m.Description,
	}
	if a.Genres == nil {
		a.Genres = []string{}
	}
	if m.AverageScore != nil {
		score := float64(*m.AverageScore) / 10
		a.Score = &score
	}
	return a
}

// Search runs a title search. page starts at 1.
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("catalog: empty search query")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 50 {
		perPage = 20
	}

	var resp struct {
		Page struct {
			PageInfo PageInfo    `json:"pageInfo"`
			Media    []mediaNode `json:"media"`
		} `json:"Page"`
	}
	req := graphql.NewRequest(searchQuery)
	req.Var("search", query)
	req.Var("page", page)
	req.Var("perPage", perPage)
	if err := c.run(ctx, req, &resp); err != nil {
		return nil, err
	}

	out := &SearchResult{PageInfo: resp.Page.PageInfo, Media: make([]Anime, 0, len(resp.Page.Media))}
	for _, m := range resp.Page.Media {
		out.Media = append(out.Media, m.toAnime())
	}
	return out, nil
}

// Get loads one anime by AniList id.
func (c *Client) Get(ctx context.Context, id int64) (*Anime, error) {
	var resp struct {
		Media *mediaNode `json:"Media"`
	}
	req := graphql.NewRequest(getQuery)
	req.Var("id", id)
	if err := c.run(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.Media == nil {
		return nil, ErrNotFound
	}
	a := resp.Media.toAnime()
	return &a, nil
}

func (c *Client) run(ctx context.Context, req *graphql.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	err := retry.Do(
		func() error {
			err := c.gql.Run(ctx, req, out)
			if err != nil && isNotFound(err) {
				return retry.Unrecoverable(ErrNotFound)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return retry.IsRecoverable(err) &&
				!errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded)
		}),
		retry.WrapContextErrorWithLastError(true),
	)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "status code: 404")
}

// String helps when printing a result in the CLI.
func (a Anime) String() string {
	score := "-"
	if a.Score != nil {
		score = fmt.Sprintf("%.1f", *a.Score)
	}
	return fmt.Sprintf("%d\t%s\t%s", a.ID, a.Title, score)
}
