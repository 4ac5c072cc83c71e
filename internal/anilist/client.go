package anilist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://graphql.anilist.co"

const (
	searchPerPage   = 12
	discoverPerPage = 24

	// AniList allows ~90 requests per minute.
	defaultRatePerMinute = 90
	defaultBurst         = 5
)

// Sentinel errors for AniList responses.
var (
	ErrNotFound    = errors.New("media not found")
	ErrRateLimited = errors.New("rate limited: too many requests")
)

const mediaFields = `id title { romaji english native } coverImage { large medium } description(asHtml: false) averageScore meanScore popularity seasonYear genres`

var (
	searchQuery   = `query ($query: String, $perPage: Int) { Page(perPage: $perPage) { media(search: $query, type: ANIME) { ` + mediaFields + ` } } }`
	discoverQuery = `query ($page: Int, $perPage: Int) { Page(page: $page, perPage: $perPage) { media(type: ANIME, sort: TRENDING_DESC) { ` + mediaFields + ` } } }`
	detailQuery   = `query ($id: Int) { Media(id: $id, type: ANIME) { ` + mediaFields + ` } }`
)

// Client is an AniList GraphQL client with client-side rate limiting.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the request budget per minute. Zero disables limiting.
func WithRateLimit(perMinute, burst int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), max(burst, 1))
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log.With("component", "anilist")
	}
}

// New creates a new AniList client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(defaultRatePerMinute)/60.0), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search finds anime by free text.
func (c *Client) Search(ctx context.Context, query string) ([]Media, error) {
	var resp pageData
	err := c.do(ctx, searchQuery, map[string]any{"query": query, "perPage": searchPerPage}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search anime: %w", err)
	}
	return resp.Page.Media, nil
}

// Trending returns a page of trending anime.
func (c *Client) Trending(ctx context.Context, page int) ([]Media, error) {
	if page < 1 {
		page = 1
	}
	var resp pageData
	err := c.do(ctx, discoverQuery, map[string]any{"page": page, "perPage": discoverPerPage}, &resp)
	if err != nil {
		return nil, fmt.Errorf("trending anime: %w", err)
	}
	return resp.Page.Media, nil
}

// GetMedia fetches a single anime by AniList ID.
func (c *Client) GetMedia(ctx context.Context, id string) (*Media, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("media %q: %w", id, ErrNotFound)
	}
	var resp mediaData
	if err := c.do(ctx, detailQuery, map[string]any{"id": n}, &resp); err != nil {
		return nil, fmt.Errorf("get media %d: %w", n, err)
	}
	if resp.Media == nil {
		return nil, fmt.Errorf("media %d: %w", n, ErrNotFound)
	}
	return resp.Media, nil
}

func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if c.log != nil {
		c.log.Debug("anilist request", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("AniList API error: %s", resp.Status)
	}

	envelope := graphQLResponse[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	for _, e := range envelope.Errors {
		if e.Status == http.StatusNotFound {
			return ErrNotFound
		}
	}
	noData := len(envelope.Data) == 0 || string(envelope.Data) == "null"
	if len(envelope.Errors) > 0 && noData {
		return fmt.Errorf("AniList API error: %s", envelope.Errors[0].Message)
	}
	if noData {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
